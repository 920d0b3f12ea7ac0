package etl

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/iliyamo/bus-occupancy-pricing/internal/apperr"
	"github.com/iliyamo/bus-occupancy-pricing/internal/model"
)

// Batch is one decoded batch container.  Records keep the loose types
// the decoder produced; numbers arrive as json.Number.
type Batch struct {
	ID        string
	Routes    []model.RawRecord
	Operators []model.RawRecord
	Schedules []model.RawRecord
	Records   []model.RawRecord
}

// RecordID is the batch-scoped id of the i-th occupancy record.
func (b Batch) RecordID(i int) string { return fmt.Sprintf("%s:%d", b.ID, i) }

// ScheduleID is the batch-scoped id of the i-th schedule row.
func (b Batch) ScheduleID(i int) string { return fmt.Sprintf("%s:schedule:%d", b.ID, i) }

// RouteID is the batch-scoped id of the i-th route row.
func (b Batch) RouteID(i int) string { return fmt.Sprintf("%s:route:%d", b.ID, i) }

// OperatorID is the batch-scoped id of the i-th operator row.
func (b Batch) OperatorID(i int) string { return fmt.Sprintf("%s:operator:%d", b.ID, i) }

type container struct {
	BatchID   string            `json:"batch_id"`
	Routes    []json.RawMessage `json:"routes"`
	Operators []json.RawMessage `json:"operators"`
	Schedules []json.RawMessage `json:"schedules"`
	Records   []json.RawMessage `json:"occupancy_records"`
}

// DecodeBatch reads a batch container: either a bare JSON array of
// occupancy records or an object with batch_id, routes, operators,
// schedules and occupancy_records, all optional.  The metadata files
// {"routes": [...]} and {"operators": [...]} are containers too.  Any structural problem is a BatchFormatError and
// nothing of the batch is returned.  A missing batch_id is replaced by a
// random UUID.
func DecodeBatch(r io.Reader) (Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Batch{}, apperr.BatchFormatError{Msg: "read batch", Err: err}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Batch{}, apperr.BatchFormatError{Msg: "empty batch"}
	}

	var c container
	switch data[0] {
	case '[':
		if err := decodeStrict(data, &c.Records); err != nil {
			return Batch{}, err
		}
	case '{':
		if err := decodeStrict(data, &c); err != nil {
			return Batch{}, err
		}
	default:
		return Batch{}, apperr.BatchFormatError{Msg: "batch must be a JSON array or object"}
	}

	b := Batch{ID: c.BatchID}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Records, err = objects(c.Records, "occupancy_records"); err != nil {
		return Batch{}, err
	}
	if b.Schedules, err = objects(c.Schedules, "schedules"); err != nil {
		return Batch{}, err
	}
	if b.Routes, err = objects(c.Routes, "routes"); err != nil {
		return Batch{}, err
	}
	if b.Operators, err = objects(c.Operators, "operators"); err != nil {
		return Batch{}, err
	}
	return b, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return apperr.BatchFormatError{Msg: "invalid json", Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return apperr.BatchFormatError{Msg: "trailing data after batch"}
	}
	return nil
}

// objects decodes every element as a JSON object.  A scalar or array in
// place of a record means the container is malformed, not the record.
func objects(raw []json.RawMessage, section string) ([]model.RawRecord, error) {
	out := make([]model.RawRecord, 0, len(raw))
	for i, msg := range raw {
		msg = bytes.TrimSpace(msg)
		if len(msg) == 0 || msg[0] != '{' {
			return nil, apperr.BatchFormatError{Msg: fmt.Sprintf("%s[%d] is not an object", section, i)}
		}
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		var rec model.RawRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, apperr.BatchFormatError{Msg: fmt.Sprintf("%s[%d]", section, i), Err: err}
		}
		out = append(out, rec)
	}
	return out, nil
}
