package service

import (
	"github.com/sirupsen/logrus"

	"restaurant-ops-api/internal/model"
)

// decodeSnapshot decodes a committed table into typed values. Records that do not
// decode are logged and left out, so the snapshot never keeps rows the table dropped.
func decodeSnapshot[T any](log logrus.FieldLogger, table string, records []model.Record) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := model.FromRecord(rec, &v); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"table":     table,
				"record_id": rec.ID(),
			}).Warn("skipping undecodable record")
			continue
		}
		out = append(out, v)
	}
	return out
}
