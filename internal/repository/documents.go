package repository

import (
	"encoding/json"
	"fmt"

	"github.com/campusride/campus/internal/store"
)

// decodeAll unmarshals raw records and stamps each with its document id.
func decodeAll[T any](recs []store.Record, setID func(*T, string)) ([]T, error) {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := json.Unmarshal(rec.Data, &v); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", rec.ID, err)
		}
		setID(&v, rec.ID)
		out = append(out, v)
	}
	return out, nil
}
