package engine

import (
	"context"
	"sort"

	"github.com/preplens/preplens-api/bank"
	"github.com/preplens/preplens-api/models"
	"github.com/preplens/preplens-api/store"
)

// SubscribeTestsForStudent streams the tests visible to one student:
// those addressed to them merged with broadcast tests, deduplicated and
// ordered newest first. An empty student id yields one empty emission
// and a no-op unsubscribe.
func (e *Engine) SubscribeTestsForStudent(studentID string, onData func([]models.Test), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if studentID == "" {
		onData(nil)
		return func() {}, nil
	}
	own := store.Query{
		Conds:   []store.Cond{{Field: "assignedTo", Op: store.OpArrayContains, Value: studentID}},
		OrderBy: "createdAt", Desc: true,
	}
	shared := store.Query{
		Conds:   []store.Cond{{Field: "assignedTo", Op: store.OpArrayContains, Value: models.BroadcastScope}},
		OrderBy: "createdAt", Desc: true,
	}
	order := store.Query{OrderBy: "createdAt", Desc: true}
	return store.SubscribeMerged(e.store, models.CollectionTests, own, shared, order, func(docs []store.Document) {
		onData(decodeTests(docs))
	}, onErr)
}

// SubscribeAllTests streams every test, newest first.
func (e *Engine) SubscribeAllTests(onData func([]models.Test), onErr store.ErrFunc) (store.Unsubscribe, error) {
	q := store.Query{OrderBy: "createdAt", Desc: true}
	return e.store.Subscribe(models.CollectionTests, q, func(docs []store.Document) {
		onData(decodeTests(docs))
	}, onErr)
}

// SubscribeResultsByUser streams a student's results, newest first.
func (e *Engine) SubscribeResultsByUser(uid string, onData func([]models.TestResult), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if uid == "" {
		onData(nil)
		return func() {}, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "uid", Op: store.OpEqual, Value: uid}},
		OrderBy: "submittedAt", Desc: true,
	}
	return e.store.Subscribe(models.CollectionResults, q, func(docs []store.Document) {
		onData(decodeResults(docs))
	}, onErr)
}

// SubscribeReportsByUser streams a student's reports, newest first.
func (e *Engine) SubscribeReportsByUser(uid string, onData func([]models.Report), onErr store.ErrFunc) (store.Unsubscribe, error) {
	if uid == "" {
		onData(nil)
		return func() {}, nil
	}
	q := store.Query{
		Conds:   []store.Cond{{Field: "uid", Op: store.OpEqual, Value: uid}},
		OrderBy: "generatedAt", Desc: true,
	}
	return e.store.Subscribe(models.CollectionReports, q, func(docs []store.Document) {
		onData(decodeReports(docs))
	}, onErr)
}

// SubscribeReportsForAdmin streams every report, newest first.
func (e *Engine) SubscribeReportsForAdmin(onData func([]models.Report), onErr store.ErrFunc) (store.Unsubscribe, error) {
	q := store.Query{OrderBy: "generatedAt", Desc: true}
	return e.store.Subscribe(models.CollectionReports, q, func(docs []store.Document) {
		onData(decodeReports(docs))
	}, onErr)
}

// GetTest fetches one test by id.
func (e *Engine) GetTest(ctx context.Context, id string) (models.Test, error) {
	docs, err := e.store.GetAll(ctx, models.CollectionTests, store.Query{
		Conds: []store.Cond{{Field: "id", Op: store.OpEqual, Value: id}},
	})
	if err != nil {
		return models.Test{}, err
	}
	if len(docs) == 0 {
		return models.Test{}, ErrTestNotFound
	}
	return decodeTests(docs[:1])[0], nil
}

// ListTestsForStudent is the one-shot form of SubscribeTestsForStudent.
func (e *Engine) ListTestsForStudent(ctx context.Context, studentID string) ([]models.Test, error) {
	if studentID == "" {
		return nil, nil
	}
	own, err := e.store.GetAll(ctx, models.CollectionTests, store.Query{
		Conds:   []store.Cond{{Field: "assignedTo", Op: store.OpArrayContains, Value: studentID}},
		OrderBy: "createdAt", Desc: true,
	})
	if err != nil {
		return nil, err
	}
	shared, err := e.store.GetAll(ctx, models.CollectionTests, store.Query{
		Conds:   []store.Cond{{Field: "assignedTo", Op: store.OpArrayContains, Value: models.BroadcastScope}},
		OrderBy: "createdAt", Desc: true,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(own)+len(shared))
	var tests []models.Test
	for _, t := range decodeTests(append(own, shared...)) {
		if seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		tests = append(tests, t)
	}
	sortTestsByCreatedAt(tests)
	return tests, nil
}

// ListResults returns every result, newest first, for admin dashboards.
func (e *Engine) ListResults(ctx context.Context) ([]models.TestResult, error) {
	docs, err := e.store.GetAll(ctx, models.CollectionResults, store.Query{OrderBy: "submittedAt", Desc: true})
	if err != nil {
		return nil, err
	}
	return decodeResults(docs), nil
}

// decodeTests maps documents to tests, filling the defaults the record
// contract promises for absent fields.
func decodeTests(docs []store.Document) []models.Test {
	tests := make([]models.Test, 0, len(docs))
	for _, d := range docs {
		var t models.Test
		if err := d.Decode(&t); err != nil {
			continue
		}
		t.ID = d.ID
		if t.Title == "" {
			t.Title = "Untitled Test"
		}
		if t.CreatedBy == "" {
			t.CreatedBy = "admin"
		}
		if len(t.Categories) == 0 {
			t.Categories = bank.Categories
		}
		if len(t.AssignedTo) == 0 {
			t.AssignedTo = []string{models.BroadcastScope}
		}
		if t.Difficulty == "" {
			t.Difficulty = "medium"
		}
		tests = append(tests, t)
	}
	return tests
}

func decodeResults(docs []store.Document) []models.TestResult {
	results := make([]models.TestResult, 0, len(docs))
	for _, d := range docs {
		var r models.TestResult
		if err := d.Decode(&r); err != nil {
			continue
		}
		r.ID = d.ID
		if r.CategoryWiseScore == nil {
			r.CategoryWiseScore = map[string]int{}
		}
		results = append(results, r)
	}
	return results
}

func decodeReports(docs []store.Document) []models.Report {
	reports := make([]models.Report, 0, len(docs))
	for _, d := range docs {
		var r models.Report
		if err := d.Decode(&r); err != nil {
			continue
		}
		r.ID = d.ID
		if r.WeakestCategory == "" {
			r.WeakestCategory = "aptitude"
		}
		reports = append(reports, r)
	}
	return reports
}

func sortTestsByCreatedAt(tests []models.Test) {
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].CreatedAt > tests[j].CreatedAt })
}
