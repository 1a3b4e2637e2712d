// Package mongotest provides an in-memory stand-in for a document store
// collection. It interprets the operator subset the repositories issue
// ($set, $inc, $push/$each/$sort, $in, $elemMatch projections, $match,
// $sample, upserts and the positional operator) and hands results back
// through the driver's own SingleResult/Cursor constructors, so repository
// code runs unchanged against it.
package mongotest

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/hahanour/sifbot/sifbot/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ database.Collection = (*Collection)(nil)

type Collection struct {
	mu   sync.Mutex
	docs []bson.M
	rnd  *rand.Rand
}

func NewCollection() *Collection {
	return &Collection{rnd: rand.New(rand.NewSource(1))}
}

// Count reports the number of stored documents.
func (c *Collection) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, err := toDoc(document)
	if err != nil {
		return nil, err
	}

	if id, ok := doc["_id"]; ok {
		for _, existing := range c.docs {
			if valuesEqual(existing["_id"], id) {
				return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{
					Code:    11000,
					Message: fmt.Sprintf("E11000 duplicate key error: _id: %v", id),
				}}}
			}
		}
	}

	c.docs = append(c.docs, doc)
	return &mongo.InsertOneResult{InsertedID: doc["_id"]}, nil
}

func (c *Collection) UpdateOne(_ context.Context, filter, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}
	u, err := toDoc(update)
	if err != nil {
		return nil, err
	}

	idx := c.findIndex(f)
	if idx < 0 {
		if !isUpsert(opts) {
			return &mongo.UpdateResult{}, nil
		}
		doc := bson.M{}
		for k, v := range f {
			if strings.HasPrefix(k, "$") || strings.Contains(k, ".") {
				continue
			}
			if _, isOp := v.(bson.M); isOp {
				continue
			}
			doc[k] = v
		}
		if err := applyUpdate(doc, u, f); err != nil {
			return nil, err
		}
		c.docs = append(c.docs, doc)
		return &mongo.UpdateResult{UpsertedCount: 1, UpsertedID: doc["_id"]}, nil
	}

	if err := applyUpdate(c.docs[idx], u, f); err != nil {
		return nil, err
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *Collection) DeleteOne(_ context.Context, filter interface{}, _ ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}

	idx := c.findIndex(f)
	if idx < 0 {
		return &mongo.DeleteResult{DeletedCount: 0}, nil
	}
	c.docs = append(c.docs[:idx], c.docs[idx+1:]...)
	return &mongo.DeleteResult{DeletedCount: 1}, nil
}

func (c *Collection) FindOne(_ context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, err, nil)
	}

	idx := c.findIndex(f)
	if idx < 0 {
		return mongo.NewSingleResultFromDocument(bson.D{}, mongo.ErrNoDocuments, nil)
	}

	doc := c.docs[idx]
	if len(opts) > 0 && opts[0] != nil && opts[0].Projection != nil {
		proj, perr := toDoc(opts[0].Projection)
		if perr != nil {
			return mongo.NewSingleResultFromDocument(bson.D{}, perr, nil)
		}
		doc = applyProjection(doc, proj)
	}
	return mongo.NewSingleResultFromDocument(doc, nil, nil)
}

func (c *Collection) Find(_ context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}

	var proj bson.M
	var limit int64
	if len(opts) > 0 && opts[0] != nil {
		if opts[0].Projection != nil {
			if proj, err = toDoc(opts[0].Projection); err != nil {
				return nil, err
			}
		}
		if opts[0].Limit != nil {
			limit = *opts[0].Limit
		}
	}

	var results []interface{}
	for _, doc := range c.docs {
		if !matchDoc(doc, f) {
			continue
		}
		if proj != nil {
			results = append(results, applyProjection(doc, proj))
		} else {
			results = append(results, doc)
		}
		if limit > 0 && int64(len(results)) >= limit {
			break
		}
	}
	return mongo.NewCursorFromDocuments(results, nil, nil)
}

func (c *Collection) Aggregate(_ context.Context, pipeline interface{}, _ ...*options.AggregateOptions) (*mongo.Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stages, err := toStages(pipeline)
	if err != nil {
		return nil, err
	}

	working := make([]bson.M, len(c.docs))
	copy(working, c.docs)

	for _, stage := range stages {
		switch {
		case stage["$match"] != nil:
			match, ok := stage["$match"].(bson.M)
			if !ok {
				return nil, fmt.Errorf("mongotest: malformed $match stage")
			}
			var kept []bson.M
			for _, doc := range working {
				if matchDoc(doc, match) {
					kept = append(kept, doc)
				}
			}
			working = kept

		case stage["$sample"] != nil:
			spec, ok := stage["$sample"].(bson.M)
			if !ok {
				return nil, fmt.Errorf("mongotest: malformed $sample stage")
			}
			size, _ := asInt64(spec["size"])
			n := int(size)
			if n > len(working) {
				n = len(working)
			}
			sampled := make([]bson.M, 0, n)
			for _, i := range c.rnd.Perm(len(working))[:n] {
				sampled = append(sampled, working[i])
			}
			working = sampled

		default:
			return nil, fmt.Errorf("mongotest: unsupported aggregation stage %v", stage)
		}
	}

	results := make([]interface{}, len(working))
	for i, doc := range working {
		results[i] = doc
	}
	return mongo.NewCursorFromDocuments(results, nil, nil)
}

func (c *Collection) Distinct(_ context.Context, fieldName string, filter interface{}, _ ...*options.DistinctOptions) ([]interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := toDoc(filter)
	if err != nil {
		return nil, err
	}

	seen := make(map[interface{}]struct{})
	var values []interface{}
	for _, doc := range c.docs {
		if !matchDoc(doc, f) {
			continue
		}
		v, ok := doc[fieldName]
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	return values, nil
}

// findIndex returns the position of the first document matching the filter.
func (c *Collection) findIndex(filter bson.M) int {
	for i, doc := range c.docs {
		if matchDoc(doc, filter) {
			return i
		}
	}
	return -1
}

// toDoc round-trips a document through bson and flattens primitive.D values
// into plain maps so the interpreter can traverse and mutate them.
func toDoc(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return normalize(doc).(bson.M), nil
}

func toStages(pipeline interface{}) ([]bson.M, error) {
	rv := reflect.ValueOf(pipeline)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("mongotest: pipeline must be a slice, got %T", pipeline)
	}
	stages := make([]bson.M, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		stage, err := toDoc(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		stages[i] = stage
	}
	return stages, nil
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.D:
		m := bson.M{}
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.M:
		m := bson.M{}
		for k, val := range t {
			m[k] = normalize(val)
		}
		return m
	case bson.A:
		a := make(bson.A, len(t))
		for i, val := range t {
			a[i] = normalize(val)
		}
		return a
	default:
		return v
	}
}

func matchDoc(doc bson.M, filter bson.M) bool {
	for key, want := range filter {
		if strings.Contains(key, ".") {
			if !pathMatches(doc, strings.Split(key, "."), want) {
				return false
			}
			continue
		}
		if cond, ok := want.(bson.M); ok {
			if in, ok := cond["$in"].(bson.A); ok {
				if !containsValue(in, doc[key]) {
					return false
				}
				continue
			}
		}
		if !valuesEqual(doc[key], want) {
			return false
		}
	}
	return true
}

// pathMatches walks a dotted path; stepping into an array matches when any
// element satisfies the remainder of the path.
func pathMatches(cur interface{}, path []string, want interface{}) bool {
	if len(path) == 0 {
		return valuesEqual(cur, want)
	}
	switch t := cur.(type) {
	case bson.M:
		return pathMatches(t[path[0]], path[1:], want)
	case bson.A:
		for _, elem := range t {
			if pathMatches(elem, path, want) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func containsValue(arr bson.A, v interface{}) bool {
	for _, elem := range arr {
		if valuesEqual(elem, v) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asInt64(v interface{}) (int64, bool) {
	f, ok := asFloat(v)
	return int64(f), ok
}

func isUpsert(opts []*options.UpdateOptions) bool {
	for _, o := range opts {
		if o != nil && o.Upsert != nil && *o.Upsert {
			return true
		}
	}
	return false
}

func applyUpdate(doc bson.M, update bson.M, filter bson.M) error {
	for op, spec := range update {
		fields, ok := spec.(bson.M)
		if !ok {
			return fmt.Errorf("mongotest: malformed %s document", op)
		}
		switch op {
		case "$set":
			for path, v := range fields {
				container, key, ok := resolvePath(doc, path, filter)
				if !ok {
					continue
				}
				container[key] = v
			}
		case "$inc":
			for path, v := range fields {
				container, key, ok := resolvePath(doc, path, filter)
				if !ok {
					continue
				}
				cur, _ := asInt64(container[key])
				delta, _ := asInt64(v)
				container[key] = cur + delta
			}
		case "$push":
			for path, v := range fields {
				if err := pushToArray(doc, path, v); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("mongotest: unsupported update operator %s", op)
		}
	}
	return nil
}

// resolvePath walks a dotted path to the enclosing document of the final
// segment, creating intermediate documents as needed. The positional "$"
// segment resolves to the array element matched by the filter.
func resolvePath(doc bson.M, path string, filter bson.M) (bson.M, string, bool) {
	segs := strings.Split(path, ".")
	cur := doc
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		if i+1 < len(segs) && segs[i+1] == "$" {
			arr, ok := cur[seg].(bson.A)
			if !ok {
				return nil, "", false
			}
			j := positionalIndex(arr, seg, filter)
			if j < 0 {
				return nil, "", false
			}
			elem, ok := arr[j].(bson.M)
			if !ok {
				return nil, "", false
			}
			cur = elem
			i++ // consume the "$" segment
			continue
		}
		next, ok := cur[seg].(bson.M)
		if !ok {
			next = bson.M{}
			cur[seg] = next
		}
		cur = next
	}
	return cur, segs[len(segs)-1], true
}

// positionalIndex finds the array element the filter's dotted condition on
// this array selected, mirroring the server's "$" semantics.
func positionalIndex(arr bson.A, arrName string, filter bson.M) int {
	for fk, fv := range filter {
		if !strings.HasPrefix(fk, arrName+".") {
			continue
		}
		sub := strings.TrimPrefix(fk, arrName+".")
		for i, elem := range arr {
			if em, ok := elem.(bson.M); ok && valuesEqual(em[sub], fv) {
				return i
			}
		}
		return -1
	}
	return -1
}

func pushToArray(doc bson.M, path string, spec interface{}) error {
	arr, _ := doc[path].(bson.A)

	var sortSpec bson.M
	switch t := spec.(type) {
	case bson.M:
		if each, ok := t["$each"].(bson.A); ok {
			arr = append(arr, each...)
			sortSpec, _ = t["$sort"].(bson.M)
		} else {
			arr = append(arr, t)
		}
	default:
		arr = append(arr, spec)
	}

	if sortSpec != nil {
		for key, dirVal := range sortSpec {
			dir, _ := asInt64(dirVal)
			sort.SliceStable(arr, func(i, j int) bool {
				a, _ := asFloat(arr[i].(bson.M)[key])
				b, _ := asFloat(arr[j].(bson.M)[key])
				if dir < 0 {
					return a > b
				}
				return a < b
			})
		}
	}

	doc[path] = arr
	return nil
}

func applyProjection(doc bson.M, proj bson.M) bson.M {
	result := bson.M{}
	if id, ok := doc["_id"]; ok {
		result["_id"] = id
	}

	for key, spec := range proj {
		if cond, ok := spec.(bson.M); ok {
			elemMatch, ok := cond["$elemMatch"].(bson.M)
			if !ok {
				continue
			}
			arr, ok := doc[key].(bson.A)
			if !ok {
				continue
			}
			for _, elem := range arr {
				em, ok := elem.(bson.M)
				if !ok {
					continue
				}
				if matchDoc(em, elemMatch) {
					result[key] = bson.A{em}
					break
				}
			}
			continue
		}

		// Inclusion field, possibly dotted.
		if strings.Contains(key, ".") {
			includePath(doc, result, strings.Split(key, "."))
			continue
		}
		if v, ok := doc[key]; ok {
			result[key] = v
		}
	}
	return result
}

func includePath(src bson.M, dst bson.M, path []string) {
	if len(path) == 1 {
		if v, ok := src[path[0]]; ok {
			dst[path[0]] = v
		}
		return
	}
	srcNext, ok := src[path[0]].(bson.M)
	if !ok {
		return
	}
	dstNext, ok := dst[path[0]].(bson.M)
	if !ok {
		dstNext = bson.M{}
	}
	includePath(srcNext, dstNext, path[1:])
	if len(dstNext) > 0 {
		dst[path[0]] = dstNext
	}
}
