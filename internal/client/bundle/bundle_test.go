package bundle

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/daybook/internal/client/models"
	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	data     map[string][]models.Record
	settings map[string]any
	err      error
}

func (f fakeSource) Collections() []models.Collection { return models.Collections }

func (f fakeSource) GetAll(ctx context.Context, c string) ([]models.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if recs, ok := f.data[c]; ok {
		return recs, nil
	}
	return []models.Record{}, nil
}

func (f fakeSource) GetSettings(ctx context.Context) (map[string]any, error) {
	return f.settings, nil
}

var exportTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func sample() *DataBundle {
	b := New(exportTime)
	b.Settings = map[string]any{"theme": "dark", "pomodoro": float64(25)}
	b.Data[models.CollectionItems] = []models.Record{
		{"id": "x", "title": "Buy milk", "updatedAt": "2026-03-01T09:00:00.000Z"},
		{"id": "y", "title": "Call mom", "tags": []any{"home"}, "updatedAt": "2026-03-01T09:01:00.000Z"},
	}
	b.Data[models.CollectionSpaces] = []models.Record{{"id": "s1", "name": "Home"}}
	return b
}

func TestSnapshot(t *testing.T) {
	src := fakeSource{
		data:     map[string][]models.Record{models.CollectionQuotes: {{"id": "q", "text": "hi"}}},
		settings: map[string]any{"a": true},
	}
	b, err := Snapshot(context.Background(), src, exportTime)
	require.NoError(t, err)

	assert.Len(t, b.Data, len(models.Collections))
	assert.Equal(t, 1, b.Count())
	assert.Equal(t, models.SchemaVersion, b.SchemaVersion)
	assert.Equal(t, exportTime, b.ExportDate)
	assert.Equal(t, map[string]any{"a": true}, b.Settings)
	assert.Empty(t, b.Records(models.CollectionItems))

	_, err = Snapshot(context.Background(), fakeSource{err: errors.New("disk")}, exportTime)
	assert.Error(t, err)
}

func TestEncodeDecode_Plain(t *testing.T) {
	in := sample()
	data, err := Encode(in, nil)
	require.NoError(t, err)
	assert.False(t, IsEncrypted(data))

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Contains(t, wire, "settings")
	assert.Contains(t, wire, "data")
	assert.Equal(t, "2026-03-01T10:00:00Z", wire["exportDate"])
	assert.Equal(t, float64(models.SchemaVersion), wire["schemaVersion"])

	out, err := Decode(data, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeDecode_Encrypted(t *testing.T) {
	in := sample()
	data, err := Encode(in, []byte("hunter2"))
	require.NoError(t, err)
	assert.True(t, IsEncrypted(data))
	assert.NotContains(t, string(data), "Buy milk")

	_, err = Decode(data, nil)
	assert.ErrorIs(t, err, common.ErrPasswordRequired)

	_, err = Decode(data, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrInvalidPassword)
	assert.NotErrorIs(t, err, common.ErrValidation)

	out, err := Decode(data, []byte("hunter2"))
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_PasswordIgnoredForPlain(t *testing.T) {
	data, err := Encode(sample(), nil)
	require.NoError(t, err)

	_, err = Decode(data, []byte("unused"))
	assert.NoError(t, err)
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"array", `[]`},
		{"missing data", `{"schemaVersion":1}`},
		{"missing version", `{"data":{}}`},
		{"newer schema", `{"data":{},"schemaVersion":99}`},
		{"zero schema", `{"data":{},"schemaVersion":0}`},
		{"null record", `{"data":{"items":[null]},"schemaVersion":1}`},
		{"record not object", `{"data":{"items":[1]},"schemaVersion":1}`},
		{"bad envelope", `{"encrypted":true,"format":2,"kdf":"argon2id","salt":"AA==","payload":"AA=="}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data), []byte("pw"))
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestDecode_DefaultsSettings(t *testing.T) {
	b, err := Decode([]byte(`{"data":{"mystery":[{"id":"1"}]},"schemaVersion":1}`), nil)
	require.NoError(t, err)
	assert.NotNil(t, b.Settings)
	assert.Len(t, b.Records("mystery"), 1)
	assert.True(t, b.ExportDate.IsZero())
}
