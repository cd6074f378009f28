package object

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// zstdMagic prefixes every zstd frame. Stored envelopes start with an ASCII
// type name, so the two can never be confused.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	})
	return decoder, decoderErr
}

// codec frames stored envelopes. A disabled codec writes raw envelopes; reads
// always accept both forms so compression can be toggled per repository.
type codec struct {
	enabled bool
	level   zstd.EncoderLevel
}

func newCodec(enabled bool, level int) codec {
	return codec{enabled: enabled, level: encoderLevel(level)}
}

func encoderLevel(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (c codec) encode(raw []byte) ([]byte, error) {
	if !c.enabled {
		return raw, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(c.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, errors.Wrap(err, "zstd writer")
	}
	defer enc.Close()
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

func (c codec) decode(stored []byte) ([]byte, error) {
	if !bytes.HasPrefix(stored, zstdMagic) {
		return stored, nil
	}
	dec, err := sharedDecoder()
	if err != nil {
		return nil, errors.Wrap(err, "zstd reader")
	}
	raw, err := dec.DecodeAll(stored, nil)
	if err != nil {
		return nil, errors.Wrap(err, "zstd decode")
	}
	return raw, nil
}
