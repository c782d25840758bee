package graph

import (
	"encoding/json"
	"errors"
)

// Link is a directed edge from one node's output slot to another node's
// input slot.  Exported workflows serialize links as tuples of at least five
// elements: [id, origin id, origin slot, target id, target slot, ...];
// trailing elements (the litegraph type tag and anything newer tools append)
// are ignored.
type Link struct {
	ID         int
	OriginID   NodeID
	OriginSlot int
	TargetID   NodeID
	TargetSlot int
}

func (l *Link) UnmarshalJSON(b []byte) error {
	var tmp []json.RawMessage
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	if len(tmp) < 5 {
		return errors.New("link tuple has fewer than five elements")
	}

	if err := decodeLinkInt(tmp[0], &l.ID); err != nil {
		return err
	}
	if err := l.OriginID.UnmarshalJSON(tmp[1]); err != nil {
		return err
	}
	if err := decodeLinkInt(tmp[2], &l.OriginSlot); err != nil {
		return err
	}
	if err := l.TargetID.UnmarshalJSON(tmp[3]); err != nil {
		return err
	}
	if err := decodeLinkInt(tmp[4], &l.TargetSlot); err != nil {
		return err
	}
	return nil
}

func (l *Link) MarshalJSON() ([]byte, error) {
	tmp := []interface{}{l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot}
	return json.Marshal(tmp)
}

func decodeLinkInt(raw json.RawMessage, dst *int) error {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	*dst = int(f)
	return nil
}
