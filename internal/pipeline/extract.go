package pipeline

import (
	"go.uber.org/zap"

	"github.com/lumenlend/tvlscan/internal/model"
	"github.com/lumenlend/tvlscan/pkg/suirpc"
)

// extractRecords parses each resolved object into a CapabilityRecord,
// silently dropping objects that don't carry an active inner capability.
func (r *Runner) extractRecords(objs []suirpc.ObjectData) []model.CapabilityRecord {
	records := make([]model.CapabilityRecord, 0, len(objs))
	for _, obj := range objs {
		rec, ok := r.extractRecord(obj)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	r.stream.Publish("extract: %d capability records from %d objects", len(records), len(objs))
	return records
}

// extractRecord pulls the position binding out of a capability object's
// nested content. Returns false when the object has no Move content, or its
// inner capability field is null — a capability whose inner value is
// currently borrowed grants nothing and yields no record. Skips are logged,
// never errors.
func (r *Runner) extractRecord(obj suirpc.ObjectData) (model.CapabilityRecord, bool) {
	var zero model.CapabilityRecord

	if obj.Content == nil || obj.Content.DataType != "moveObject" || obj.Content.Fields == nil {
		r.skip(obj.ObjectID, "no_content")
		return zero, false
	}

	capField, ok := obj.Content.Fields["cap"].(map[string]any)
	if !ok || capField == nil {
		// null inner capability: the cap is lent out as a hot potato right now
		r.skip(obj.ObjectID, "cap_borrowed")
		return zero, false
	}

	capFields, ok := capField["fields"].(map[string]any)
	if !ok {
		r.skip(obj.ObjectID, "cap_malformed")
		return zero, false
	}

	positionID, ok := capFields["obligation_id"].(string)
	if !ok || positionID == "" {
		r.skip(obj.ObjectID, "no_position_id")
		return zero, false
	}

	kind, _ := capFields["kind"].(string)

	var owner string
	if obj.Owner != nil {
		owner = obj.Owner.Address()
	}

	return model.CapabilityRecord{
		ObjectID:       model.NormalizeCandidateID(obj.ObjectID),
		PositionID:     positionID,
		Classification: model.ParseClassification(kind),
		Owner:          owner,
	}, true
}

func (r *Runner) skip(objectID, reason string) {
	r.metrics.RecordSkip(reason)
	r.log.Debug("skipped capability object",
		zap.String("object_id", objectID),
		zap.String("reason", reason),
	)
}
