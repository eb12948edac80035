package protocol

import (
	"math"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// EncodeSnapshot 编码快照
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	b, err := msgpack.Marshal(&s)
	if err != nil {
		return nil, errors.Wrap(err, "encode snapshot failed")
	}
	return b, nil
}

// DecodeSnapshot 解码快照；缺失的 Players 视为空集合
func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(b, &s); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot failed")
	}
	if s.Players == nil {
		s.Players = make(map[ClientID]PlayerState)
	}
	for id, st := range s.Players {
		if id == "" {
			return Snapshot{}, errors.Wrap(ErrMalformed, "snapshot contains empty client id")
		}
		if !stateFinite(st) {
			return Snapshot{}, errors.Wrapf(ErrMalformed, "snapshot state for %s is not finite", id)
		}
	}
	return s, nil
}

func EncodeServerMessage(m ServerMessage) ([]byte, error) {
	b, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, errors.Wrap(err, "encode server message failed")
	}
	return b, nil
}

func DecodeServerMessage(b []byte) (ServerMessage, error) {
	var m ServerMessage
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return ServerMessage{}, errors.Wrap(err, "decode server message failed")
	}
	if m.ClientID == "" {
		return ServerMessage{}, errors.Wrapf(ErrMalformed, "%s without client id", m.Kind)
	}
	switch m.Kind {
	case KindWelcome, KindPlayerDisconnected:
	case KindPlayerConnected:
		if m.State == nil {
			return ServerMessage{}, errors.Wrap(ErrMalformed, "player_connected without state")
		}
		if !stateFinite(*m.State) {
			return ServerMessage{}, errors.Wrap(ErrMalformed, "player_connected state is not finite")
		}
	default:
		return ServerMessage{}, errors.Wrapf(ErrMalformed, "unknown server message kind %d", m.Kind)
	}
	return m, nil
}

func EncodeClientInput(in ClientInput) ([]byte, error) {
	b, err := msgpack.Marshal(&in)
	if err != nil {
		return nil, errors.Wrap(err, "encode client input failed")
	}
	return b, nil
}

func DecodeClientInput(b []byte) (ClientInput, error) {
	var in ClientInput
	if err := msgpack.Unmarshal(b, &in); err != nil {
		return ClientInput{}, errors.Wrap(err, "decode client input failed")
	}
	if !finite(in.Direction[0]) || !finite(in.Direction[1]) {
		return ClientInput{}, errors.Wrap(ErrMalformed, "input direction is not finite")
	}
	// 线上约定模长 ≤ 1，超出的按发送端同样的规则归一化
	return NewClientInput(in.Direction), nil
}

func stateFinite(s PlayerState) bool {
	return finite(s.InputDir[0]) && finite(s.InputDir[1]) &&
		finite(s.Position[0]) && finite(s.Position[1]) && finite(s.Position[2]) &&
		finite(s.Angle)
}

func finite(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
