package benchmark

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/TFMV/planbench/pkg/catalog"
	"github.com/TFMV/planbench/pkg/errors"
	"github.com/TFMV/planbench/pkg/plan"
	"github.com/TFMV/planbench/pkg/repositories"
)

// MissingDocumentExplain is the message of the marker document recorded for
// queries without a document explainer.
const MissingDocumentExplain = "no document explain defined for this query"

// relationalCapture is the relational engine's output for one query.
type relationalCapture struct {
	raw     any
	explain plan.Explain
	err     error
}

// documentCapture is the document engine's output for one query.
type documentCapture struct {
	raw     bson.M
	missing bool
	err     error
}

// errorMarker is stored as the raw artifact entry of a failed capture.
func errorMarker(msg string) bson.M {
	return bson.M{"error": msg}
}

func captureRelational(ctx context.Context, q catalog.Query, repo repositories.RelationalRepository) relationalCapture {
	data, err := q.Relational(ctx, repo)
	if err != nil {
		return relationalCapture{err: asCaptureError(err, "relational explain for %s", q.Name)}
	}

	raw, explain, err := plan.DecodeJSON(data)
	if err != nil {
		return relationalCapture{err: errors.Wrapf(err, errors.CodeCaptureFailed, "decode relational plan for %s", q.Name)}
	}
	return relationalCapture{raw: raw, explain: explain}
}

func captureDocument(ctx context.Context, q catalog.Query, repo repositories.DocumentRepository) documentCapture {
	if q.Document == nil {
		return documentCapture{raw: errorMarker(MissingDocumentExplain), missing: true}
	}

	doc, err := q.Document(ctx, repo)
	if err != nil {
		return documentCapture{err: asCaptureError(err, "document explain for %s", q.Name)}
	}
	return documentCapture{raw: doc}
}

// asCaptureError keeps errors already coded as capture failures and wraps
// everything else.
func asCaptureError(err error, format string, args ...any) error {
	if errors.IsCaptureFailed(err) {
		return err
	}
	return errors.Wrapf(err, errors.CodeCaptureFailed, format, args...)
}
