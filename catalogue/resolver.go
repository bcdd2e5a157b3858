package catalogue

import (
	"context"
	"sort"
	"strings"

	"github.com/mohitkumar/carepath/logger"
	"github.com/oliveagle/jsonpath"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Values holds resolved variables. Unresolved variables map to nil.
type Values map[string]any

type Resolver struct {
	catalogue   *Catalogue
	parallelism int
}

// NewResolver returns a resolver issuing at most parallelism object queries at
// once. parallelism <= 1 queries objects one after another.
func NewResolver(catalogue *Catalogue, parallelism int) *Resolver {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Resolver{
		catalogue:   catalogue,
		parallelism: parallelism,
	}
}

type objectRequest struct {
	name       string
	attributes []string
	record     Record
}

// Resolve returns one entry per distinct name. Each object's query runs once
// per call no matter how many of its attributes are requested. Failures never
// surface as errors: the affected variables resolve to nil.
func (r *Resolver) Resolve(ctx context.Context, patientId string, names []string) Values {
	values := make(Values, len(names))
	byObject := make(map[string]*objectRequest)
	for _, name := range names {
		if _, seen := values[name]; seen {
			continue
		}
		values[name] = nil
		object, attribute, ok := SplitVariable(name)
		if !ok {
			logger.Warn("malformed variable name", zap.String("variable", name))
			continue
		}
		req, ok := byObject[object]
		if !ok {
			req = &objectRequest{name: object}
			byObject[object] = req
		}
		req.attributes = append(req.attributes, attribute)
	}

	requests := make([]*objectRequest, 0, len(byObject))
	for _, req := range byObject {
		requests = append(requests, req)
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].name < requests[j].name })

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, req := range requests {
		req := req
		g.Go(func() error {
			req.record = r.query(gctx, patientId, req.name)
			return nil
		})
	}
	_ = g.Wait()

	for _, req := range requests {
		obj, _ := r.catalogue.Object(req.name)
		for _, attribute := range req.attributes {
			values[req.name+"."+attribute] = lookup(obj, req.record, attribute)
		}
	}
	return values
}

func (r *Resolver) query(ctx context.Context, patientId string, object string) Record {
	obj, ok := r.catalogue.Object(object)
	if !ok {
		logger.Warn("object not in catalogue", zap.String("object", object))
		return nil
	}
	record, err := obj.Query(ctx, patientId)
	if err != nil {
		logger.Warn("catalogue query failed, treating as no record", zap.String("object", object), zap.String("patient", patientId), zap.Error(err))
		return nil
	}
	return record
}

func lookup(obj Object, record Record, attribute string) any {
	if record == nil {
		return nil
	}
	if v := field(record, attribute); v != nil {
		return v
	}
	fn, ok := obj.Custom[attribute]
	if !ok {
		return nil
	}
	v, err := fn(record)
	if err != nil {
		logger.Warn("computed attribute failed", zap.String("attribute", attribute), zap.Error(err))
		return nil
	}
	return v
}

func field(record Record, attribute string) any {
	if v, ok := record[attribute]; ok {
		return v
	}
	if !strings.ContainsAny(attribute, ".[") {
		return nil
	}
	v, err := jsonpath.JsonPathLookup(map[string]any(record), "$."+attribute)
	if err != nil {
		return nil
	}
	return v
}

// SplitVariable splits "object.attribute" at the first dot.
func SplitVariable(name string) (string, string, bool) {
	object, attribute, ok := strings.Cut(name, ".")
	if !ok || len(object) == 0 || len(attribute) == 0 {
		return "", "", false
	}
	return object, attribute, true
}
