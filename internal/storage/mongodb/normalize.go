package mongodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	gateway "github.com/nyuchitech/mukoko-db-gateway/internal"
)

// normalizeDocuments converts BSON-specific values in a result set into
// JSON-friendly forms. The gateway's contract is plain JSON; callers must
// never see primitive.ObjectID byte arrays or raw BSON datetimes.
func normalizeDocuments(docs []gateway.Document) []gateway.Document {
	if docs == nil {
		return []gateway.Document{}
	}
	for i, d := range docs {
		docs[i] = normalizeDocument(d)
	}
	return docs
}

func normalizeDocument(doc gateway.Document) gateway.Document {
	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}
	return doc
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Timestamp:
		return val.T
	case primitive.Decimal128:
		return val.String()
	case primitive.Binary:
		return val.Data
	case primitive.M:
		return normalizeDocument(map[string]any(val))
	case map[string]any:
		return normalizeDocument(val)
	case primitive.D:
		m := make(gateway.Document, len(val))
		for _, e := range val {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case primitive.A:
		return normalizeSlice([]any(val))
	case []any:
		return normalizeSlice(val)
	default:
		return v
	}
}

func normalizeSlice(vals []any) []any {
	for i, v := range vals {
		vals[i] = normalizeValue(v)
	}
	return vals
}

// rewriteFilter prepares a decoded JSON filter for the driver. Two concerns:
// the driver rejects nil filters, and IDs travel as 24-hex strings over the
// wire while the store holds ObjectIDs. Any string under an "_id" key that
// parses as an ObjectID is promoted, including inside comparison operators
// like {"_id": {"$in": [...]}}, so insertOne -> findOne round-trips work.
func rewriteFilter(filter gateway.Document) gateway.Document {
	if filter == nil {
		return bson.M{}
	}
	return rewriteMap(filter, false)
}

func rewriteMap(m gateway.Document, inID bool) gateway.Document {
	for k, v := range m {
		childInID := inID && strings.HasPrefix(k, "$")
		if k == "_id" || strings.HasSuffix(k, "._id") {
			childInID = true
		}
		m[k] = rewriteValue(v, childInID)
	}
	return m
}

func rewriteValue(v any, inID bool) any {
	switch val := v.(type) {
	case string:
		if inID {
			if oid, err := primitive.ObjectIDFromHex(val); err == nil {
				return oid
			}
		}
		return val
	case map[string]any:
		return rewriteMap(val, inID)
	case []any:
		for i, child := range val {
			val[i] = rewriteValue(child, inID)
		}
		return val
	default:
		return v
	}
}
