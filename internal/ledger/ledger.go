// Package ledger loads banking-data feeds from local files or Cloud Storage.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"

	"github.com/sells-group/creator-credit/internal/model"
)

const gcsScheme = "gs://"

// ObjectReader reads one object from a bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// Loader resolves a location (a file path or gs://bucket/object) into
// validated banking data.
type Loader struct {
	objects ObjectReader
}

// NewLoader creates a Loader. objects may be nil when only local files are
// used.
func NewLoader(objects ObjectReader) *Loader {
	return &Loader{objects: objects}
}

// Load reads, parses and validates the banking data at location.
func (l *Loader) Load(ctx context.Context, location string) (*model.BankingData, error) {
	if bucket, object, ok := SplitGCS(location); ok {
		if l.objects == nil {
			return nil, eris.Errorf("ledger: no object storage configured for %s", location)
		}
		data, err := l.objects.ReadObject(ctx, bucket, object)
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: read %s", location)
		}
		return Parse(bytes.NewReader(data))
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: open %s", location)
	}
	defer f.Close() //nolint:errcheck
	return Parse(f)
}

// Parse decodes and validates banking data. Decoding problems are reported
// as *model.ValidationError.
func Parse(r io.Reader) (*model.BankingData, error) {
	var bd model.BankingData
	if err := json.NewDecoder(r).Decode(&bd); err != nil {
		if model.IsValidation(err) {
			return nil, err
		}
		return nil, &model.ValidationError{Field: "banking_data", Reason: err.Error()}
	}
	if err := bd.Validate(); err != nil {
		return nil, err
	}
	return &bd, nil
}

// SplitGCS splits gs://bucket/object. ok is false for anything else.
func SplitGCS(location string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(location, gcsScheme)
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || object == "" {
		return "", "", false
	}
	return bucket, object, true
}

// GCSReader reads objects from Google Cloud Storage.
type GCSReader struct {
	client *storage.Client
}

// NewGCSReader creates a Cloud Storage client using application default
// credentials unless opts say otherwise.
func NewGCSReader(ctx context.Context, opts ...option.ClientOption) (*GCSReader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: create storage client")
	}
	return &GCSReader{client: client}, nil
}

// ReadObject returns the full object contents.
func (g *GCSReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	r, err := g.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open object reader")
	}
	defer r.Close() //nolint:errcheck

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: read object")
	}
	return data, nil
}

// Close releases the storage client.
func (g *GCSReader) Close() error {
	return g.client.Close()
}
