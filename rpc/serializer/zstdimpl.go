package serializer

import (
	"fmt"
	"github.com/ValentinKolb/dSync/rpc/common"
	"github.com/klauspost/compress/zstd"
)

// NewZstdSerializer wraps inner and compresses every serialized message with zstd.
// Snapshots of large claim tables and unit payloads shrink considerably,
// small control messages pay a few bytes of frame overhead.
func NewZstdSerializer(inner IRPCSerializer) (IRPCSerializer, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &zstdSerializerImpl{inner: inner, enc: enc, dec: dec}, nil
}

// zstdSerializerImpl implements IRPCSerializer on top of another serializer.
// EncodeAll and DecodeAll are safe for concurrent use.
type zstdSerializerImpl struct {
	inner IRPCSerializer
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func (z *zstdSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	raw, err := z.inner.Serialize(msg)
	if err != nil {
		return nil, err
	}
	return z.enc.EncodeAll(raw, make([]byte, 0, len(raw))), nil
}

func (z *zstdSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	raw, err := z.dec.DecodeAll(b, nil)
	if err != nil {
		return fmt.Errorf("zstd decode: %w", err)
	}
	return z.inner.Deserialize(raw, msg)
}
