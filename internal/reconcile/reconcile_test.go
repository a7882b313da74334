package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore records calls so tests can assert which writes happened.
type fakeStore struct {
	ownedByOther bool
	exists       bool
	checkErr     error
	insertErr    error
	updateErr    error

	inserted map[string]any
	updated  map[string]any
	marked   []string
}

func (f *fakeStore) PlaceIDOwnedByOther(ctx context.Context, placeID, customerID string) (bool, error) {
	return f.ownedByOther, f.checkErr
}

func (f *fakeStore) ExistsByCustomerID(ctx context.Context, customerID string) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) Insert(ctx context.Context, cols map[string]any) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = cols
	return nil
}

func (f *fakeStore) Update(ctx context.Context, customerID string, cols map[string]any) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = cols
	return nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, pendingID string) error {
	f.marked = append(f.marked, pendingID)
	return nil
}

func sanitized() map[string]any {
	return map[string]any{
		"customer_id": "cust-1",
		"place_id":    "ChIJ123",
		"name":        "Bar Manolo",
	}
}

func TestReconcileInsertsNewCustomer(t *testing.T) {
	store := &fakeStore{}
	outcome, err := New(store).Reconcile(context.Background(), sanitized())
	require.NoError(t, err)
	assert.Equal(t, OutcomeInserted, outcome)
	assert.NotNil(t, store.inserted)
	assert.Nil(t, store.updated)
}

func TestReconcileUpdatesExistingCustomer(t *testing.T) {
	store := &fakeStore{exists: true}
	outcome, err := New(store).Reconcile(context.Background(), sanitized())
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)
	assert.NotNil(t, store.updated)
	assert.Nil(t, store.inserted)
}

func TestReconcileConflictSkipsWithoutWriting(t *testing.T) {
	store := &fakeStore{ownedByOther: true, exists: true}
	outcome, err := New(store).Reconcile(context.Background(), sanitized())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedConflict, outcome)
	assert.Nil(t, store.inserted)
	assert.Nil(t, store.updated)
}

func TestReconcileMissingKeys(t *testing.T) {
	tests := []struct {
		name string
		data map[string]any
		want string
	}{
		{"no customer_id", map[string]any{"place_id": "p"}, "missing customer_id"},
		{"nil customer_id", map[string]any{"customer_id": nil, "place_id": "p"}, "missing customer_id"},
		{"no place_id", map[string]any{"customer_id": "c"}, "missing place_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&fakeStore{}).Reconcile(context.Background(), tt.data)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReconcileClassifiesStoreErrors(t *testing.T) {
	store := &fakeStore{
		insertErr: errors.New(`ERROR: null value in column "customer_id" violates not-null constraint`),
	}
	_, err := New(store).Reconcile(context.Background(), sanitized())
	require.Error(t, err)
	assert.ErrorContains(t, err, "insert failed (not_null_violation)")
	assert.ErrorContains(t, err, `required column "customer_id" was null`)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{`invalid input syntax for type double precision: "abc"`, CategoryInvalidSyntax},
		{`value too long for type character varying(255)`, CategoryValueTooLong},
		{`invalid json detected`, CategoryInvalidJSON},
		{`null value in column "name" violates not-null constraint`, CategoryNotNull},
		{`duplicate key value violates unique constraint "places_place_id_key"`, CategoryUnique},
		{`connection refused`, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(errors.New(tt.msg)))
		})
	}
}

func TestDescribe(t *testing.T) {
	err := errors.New(`invalid input syntax for type double precision: "not-a-number"`)
	assert.Equal(t, `a double precision column rejected the value "not-a-number"`, Describe(err))

	err = errors.New(`duplicate key value violates unique constraint "places_place_id_key"`)
	assert.Equal(t, `write collided with unique constraint "places_place_id_key"`, Describe(err))

	assert.Equal(t, "connection refused", Describe(errors.New("connection refused")))
}
