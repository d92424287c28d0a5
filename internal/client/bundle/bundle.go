// Package bundle is the wire form of a full dataset: settings, every
// collection's records, the export time and the schema version. The same
// bytes are used for file exports and for the sync blob.
package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
)

const (
	envelopeFormat = 1
	envelopeKDF    = "argon2id"
)

type DataBundle struct {
	Settings      map[string]any             `json:"settings"`
	Data          map[string][]models.Record `json:"data"`
	ExportDate    time.Time                  `json:"exportDate"`
	SchemaVersion int                        `json:"schemaVersion"`
}

// New returns an empty bundle stamped with now.
func New(now time.Time) *DataBundle {
	return &DataBundle{
		Settings:      map[string]any{},
		Data:          map[string][]models.Record{},
		ExportDate:    now.UTC(),
		SchemaVersion: models.SchemaVersion,
	}
}

// Source is what Snapshot reads from; *store.Handle satisfies it.
type Source interface {
	Collections() []models.Collection
	GetAll(ctx context.Context, collection string) ([]models.Record, error)
	GetSettings(ctx context.Context) (map[string]any, error)
}

// Snapshot reads settings and every declared collection, in order.
func Snapshot(ctx context.Context, src Source, now time.Time) (*DataBundle, error) {
	b := New(now)
	settings, err := src.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if settings != nil {
		b.Settings = settings
	}
	for _, c := range src.Collections() {
		recs, err := src.GetAll(ctx, c.Name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", c.Name, err)
		}
		b.Data[c.Name] = recs
	}
	return b, nil
}

// Records returns the records of one collection, or nil.
func (b *DataBundle) Records(collection string) []models.Record {
	if b == nil {
		return nil
	}
	return b.Data[collection]
}

// Count is the number of records across all collections.
func (b *DataBundle) Count() int {
	n := 0
	for _, recs := range b.Data {
		n += len(recs)
	}
	return n
}

type envelope struct {
	Encrypted bool   `json:"encrypted"`
	Format    int    `json:"format"`
	KDF       string `json:"kdf"`
	Salt      []byte `json:"salt"`
	Nonce     []byte `json:"nonce"`
	Payload   []byte `json:"payload"`
}

// Encode serializes b. With a non-empty password the JSON is sealed with a
// key derived from it and wrapped in an envelope marked "encrypted".
func Encode(b *DataBundle, password []byte) ([]byte, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil bundle", common.ErrValidation)
	}
	plain, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode bundle: %w", err)
	}
	if len(password) == 0 {
		return plain, nil
	}

	salt := cryptox.NewSalt()
	key := cryptox.DeriveKey(password, salt)
	defer common.WipeByteArray(key)

	nonce, ct, err := cryptox.Seal(key, plain)
	if err != nil {
		return nil, fmt.Errorf("seal bundle: %w", err)
	}
	return json.Marshal(envelope{
		Encrypted: true,
		Format:    envelopeFormat,
		KDF:       envelopeKDF,
		Salt:      salt,
		Nonce:     nonce,
		Payload:   ct,
	})
}

// IsEncrypted reports whether data carries the encryption marker.
func IsEncrypted(data []byte) bool {
	var probe struct {
		Encrypted bool `json:"encrypted"`
	}
	return json.Unmarshal(data, &probe) == nil && probe.Encrypted
}

// Decode parses a bundle produced by Encode.
//
// Encrypted input without a password fails with common.ErrPasswordRequired
// and a wrong password with common.ErrInvalidPassword. Anything malformed,
// or a schema newer than this build understands, is common.ErrValidation.
func Decode(data []byte, password []byte) (*DataBundle, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: bundle is not a JSON object: %w", common.ErrValidation, err)
	}

	plain := data
	if env.Encrypted {
		if len(password) == 0 {
			return nil, common.ErrPasswordRequired
		}
		if env.Format != envelopeFormat || env.KDF != envelopeKDF {
			return nil, fmt.Errorf("%w: unsupported encryption format %d/%s", common.ErrValidation, env.Format, env.KDF)
		}
		if len(env.Salt) == 0 || len(env.Payload) == 0 {
			return nil, fmt.Errorf("%w: incomplete encrypted bundle", common.ErrValidation)
		}

		key := cryptox.DeriveKey(password, env.Salt)
		defer common.WipeByteArray(key)

		var err error
		plain, err = cryptox.Open(key, env.Nonce, env.Payload)
		if errors.Is(err, cryptox.ErrDecrypt) {
			return nil, common.ErrInvalidPassword
		}
		if err != nil {
			return nil, fmt.Errorf("open bundle: %w", err)
		}
	}

	return decodePlain(plain)
}

func decodePlain(data []byte) (*DataBundle, error) {
	var raw struct {
		Settings      map[string]any             `json:"settings"`
		Data          map[string][]models.Record `json:"data"`
		ExportDate    *time.Time                 `json:"exportDate"`
		SchemaVersion *int                       `json:"schemaVersion"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: malformed bundle: %w", common.ErrValidation, err)
	}
	if raw.SchemaVersion == nil || raw.Data == nil {
		return nil, fmt.Errorf("%w: bundle is missing data or schemaVersion", common.ErrValidation)
	}
	if *raw.SchemaVersion < 1 || *raw.SchemaVersion > models.SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported bundle schema version %d (supported up to %d)",
			common.ErrValidation, *raw.SchemaVersion, models.SchemaVersion)
	}
	for name, recs := range raw.Data {
		for i, r := range recs {
			if r == nil {
				return nil, fmt.Errorf("%w: %s[%d] is not an object", common.ErrValidation, name, i)
			}
		}
	}

	b := &DataBundle{
		Settings:      raw.Settings,
		Data:          raw.Data,
		SchemaVersion: *raw.SchemaVersion,
	}
	if b.Settings == nil {
		b.Settings = map[string]any{}
	}
	if raw.ExportDate != nil {
		b.ExportDate = raw.ExportDate.UTC()
	}
	return b, nil
}
