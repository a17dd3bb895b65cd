package states

import (
	"fmt"

	"github.com/go-faster/jx"
)

func encodeSession(s Session) []byte {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	e.Obj(func(e *jx.Encoder) {
		e.Field("state", func(e *jx.Encoder) { e.Str(string(s.State)) })
		e.Field("months", func(e *jx.Encoder) { e.Int(s.Months) })
		e.Field("awaiting_months_input", func(e *jx.Encoder) { e.Bool(s.AwaitingMonthsInput) })
	})

	return append([]byte(nil), e.Bytes()...)
}

func decodeSession(data []byte) (Session, error) {
	var s Session
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "state":
			v, err := d.Str()
			if err != nil {
				return err
			}
			s.State = State(v)
		case "months":
			v, err := d.Int()
			if err != nil {
				return err
			}
			s.Months = v
		case "awaiting_months_input":
			v, err := d.Bool()
			if err != nil {
				return err
			}
			s.AwaitingMonthsInput = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}

	return s.normalize(), nil
}
