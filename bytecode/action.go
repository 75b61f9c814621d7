package bytecode

import (
	"github.com/deepnoodle-ai/avm/cursor"
	"github.com/deepnoodle-ai/avm/errz"
	"github.com/deepnoodle-ai/avm/op"
)

// ActionRecord is one legacy action tag and its payload.
type ActionRecord struct {
	Offset  int
	Action  op.Action
	Payload []byte
}

// Length returns the encoded length of the record, including its header.
func (r ActionRecord) Length() int {
	if r.Action.HasPayload() {
		return 3 + len(r.Payload)
	}
	return 1
}

// End returns the offset following the record.
func (r ActionRecord) End() int {
	return r.Offset + r.Length()
}

// BranchTarget returns the absolute target of a Jump or If record.
func (r ActionRecord) BranchTarget() (int, bool) {
	if (r.Action != op.ActionJump && r.Action != op.ActionIf) || len(r.Payload) < 2 {
		return 0, false
	}
	off := int16(uint16(r.Payload[0]) | uint16(r.Payload[1])<<8)
	return r.End() + int(off), true
}

// ReadAction decodes the record at the cursor's position. Payloads running
// past the readable end are reported as truncated input.
func ReadAction(c *cursor.Cursor) (ActionRecord, error) {
	start := c.Tell()
	b, err := c.ReadU8()
	if err != nil {
		return ActionRecord{}, err
	}
	rec := ActionRecord{Offset: start, Action: op.Action(b)}
	if !rec.Action.HasPayload() {
		return rec, nil
	}
	n, err := c.ReadU16()
	if err != nil {
		return ActionRecord{}, err
	}
	payload, err := c.ReadBytes(int(n))
	if err != nil {
		return ActionRecord{}, err
	}
	rec.Payload = payload
	return rec, nil
}

// DecodeActions splits a legacy action stream into records, stopping after
// the End action or at the end of the buffer. Function bodies introduced by
// DefineFunction and DefineFunction2 are decoded inline, like any other
// records, since they follow their defining record in the stream.
func DecodeActions(buf []byte) ([]ActionRecord, error) {
	c := cursor.New(buf)
	var out []ActionRecord
	for !c.AtEnd() {
		rec, err := ReadAction(c)
		if err != nil {
			return out, errz.Malformed(err, "action stream truncated at offset %d", c.Tell())
		}
		out = append(out, rec)
		if rec.Action == op.ActionEnd {
			break
		}
	}
	return out, nil
}
