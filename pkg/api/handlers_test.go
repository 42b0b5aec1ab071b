package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/bursar/pkg/auth"
	"github.com/campuskit/bursar/pkg/catalog"
	"github.com/campuskit/bursar/pkg/contextkeys"
	"github.com/campuskit/bursar/pkg/fees"
	"github.com/campuskit/bursar/pkg/invoices"
	"github.com/campuskit/bursar/pkg/limits"
	"github.com/campuskit/bursar/pkg/payments"
	"github.com/campuskit/bursar/pkg/subscriptions"
)

// --- fakes ---

type fakeCatalog struct {
	plans     []*catalog.Plan
	createErr error
}

func (f *fakeCatalog) ListActive(ctx context.Context) ([]*catalog.Plan, error) { return f.plans, nil }
func (f *fakeCatalog) Resolve(ctx context.Context, code catalog.PlanCode, cycle catalog.BillingCycle) (*catalog.Plan, error) {
	for _, p := range f.plans {
		if p.Code == code && p.BillingCycle == cycle {
			return p, nil
		}
	}
	return nil, catalog.ErrPlanNotFound
}
func (f *fakeCatalog) GetPlan(ctx context.Context, id int64) (*catalog.Plan, error) {
	for _, p := range f.plans {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, catalog.ErrPlanNotFound
}
func (f *fakeCatalog) Create(ctx context.Context, req *catalog.CreatePlanRequest) (*catalog.Plan, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	plan := &catalog.Plan{
		ID:             int64(len(f.plans) + 1),
		Code:           req.Code,
		BillingCycle:   req.BillingCycle,
		PriceCents:     req.PriceCents,
		Currency:       req.Currency,
		MaxStudents:    req.MaxStudents,
		MaxTeachers:    req.MaxTeachers,
		MaxDepartments: req.MaxDepartments,
		Active:         true,
	}
	f.plans = append(f.plans, plan)
	return plan, nil
}
func (f *fakeCatalog) Deactivate(ctx context.Context, id int64) error { return nil }

type fakeSubs struct {
	active    *subscriptions.Subscription
	created   *subscriptions.Subscription
	createErr error
}

func (f *fakeSubs) CreateOrReplace(ctx context.Context, tenantID int64, code catalog.PlanCode, cycle catalog.BillingCycle) (*subscriptions.Subscription, error) {
	return f.created, f.createErr
}
func (f *fakeSubs) GetActive(ctx context.Context, tenantID int64) (*subscriptions.Subscription, error) {
	if f.active == nil {
		return nil, subscriptions.ErrNoActiveSubscription
	}
	return f.active, nil
}
func (f *fakeSubs) EnsureActive(ctx context.Context, principal *auth.Principal) (*subscriptions.Subscription, error) {
	return f.active, nil
}
func (f *fakeSubs) GetSubscription(ctx context.Context, tenantID, id int64) (*subscriptions.Subscription, error) {
	if f.active != nil && f.active.ID == id {
		return f.active, nil
	}
	return nil, subscriptions.ErrSubscriptionNotFound
}
func (f *fakeSubs) ListExpiring(ctx context.Context, now time.Time, window time.Duration) ([]*subscriptions.Subscription, error) {
	return nil, nil
}
func (f *fakeSubs) ExpireStale(ctx context.Context, now time.Time) (int64, error) { return 0, nil }

type fakeInvoiceService struct {
	invoice     *invoices.Invoice
	generateErr error
}

func (f *fakeInvoiceService) Generate(ctx context.Context, subscriptionID int64) (*invoices.Invoice, error) {
	return f.invoice, f.generateErr
}
func (f *fakeInvoiceService) GetInvoice(ctx context.Context, tenantID, id int64) (*invoices.Invoice, error) {
	if f.invoice != nil && f.invoice.ID == id {
		return f.invoice, nil
	}
	return nil, invoices.ErrInvoiceNotFound
}
func (f *fakeInvoiceService) GetByNumber(ctx context.Context, tenantID int64, number string) (*invoices.Invoice, error) {
	if f.invoice != nil && f.invoice.InvoiceNumber == number && f.invoice.TenantID == tenantID {
		return f.invoice, nil
	}
	return nil, invoices.ErrInvoiceNotFound
}
func (f *fakeInvoiceService) List(ctx context.Context, tenantID int64, filter invoices.ListFilter) ([]*invoices.Invoice, error) {
	if f.invoice == nil {
		return nil, nil
	}
	return []*invoices.Invoice{f.invoice}, nil
}
func (f *fakeInvoiceService) ListOverdue(ctx context.Context, now time.Time) ([]*invoices.Invoice, error) {
	return nil, nil
}
func (f *fakeInvoiceService) Summarize(ctx context.Context, tenantID int64) (*invoices.Summary, error) {
	return &invoices.Summary{TenantID: tenantID}, nil
}

type fakePaymentService struct {
	payment    *payments.Payment
	createErr  error
	processErr error
}

func (f *fakePaymentService) CreatePayment(ctx context.Context, payment *payments.Payment) error {
	if f.createErr != nil {
		return f.createErr
	}
	payment.ID = 5
	return nil
}
func (f *fakePaymentService) ProcessPayment(ctx context.Context, tenantID, invoiceID int64, gateway, transactionID string, amountCents int64) (*payments.Payment, error) {
	return f.payment, f.processErr
}
func (f *fakePaymentService) ConfirmByTransaction(ctx context.Context, gateway, transactionID string) (*payments.Payment, error) {
	return f.payment, nil
}
func (f *fakePaymentService) FailByTransaction(ctx context.Context, gateway, transactionID string) (*payments.Payment, error) {
	return f.payment, nil
}
func (f *fakePaymentService) GetPayment(ctx context.Context, tenantID, id int64) (*payments.Payment, error) {
	if f.payment != nil {
		return f.payment, nil
	}
	return nil, payments.ErrPaymentNotFound
}
func (f *fakePaymentService) ListByInvoice(ctx context.Context, tenantID, invoiceID int64) ([]*payments.Payment, error) {
	return nil, nil
}
func (f *fakePaymentService) Summarize(ctx context.Context, tenantID int64) (*payments.Summary, error) {
	return &payments.Summary{TenantID: tenantID}, nil
}

type fakeLimits struct {
	err error
}

func (f *fakeLimits) CheckStudentLimit(ctx context.Context, tenantID int64) error    { return f.err }
func (f *fakeLimits) CheckTeacherLimit(ctx context.Context, tenantID int64) error    { return f.err }
func (f *fakeLimits) CheckDepartmentLimit(ctx context.Context, tenantID int64) error { return f.err }

type fakeFeeService struct {
	fee       *fees.StudentFee
	recordErr error
}

func (f *fakeFeeService) CreateFee(ctx context.Context, fee *fees.StudentFee) error {
	fee.ID = 3
	return nil
}
func (f *fakeFeeService) GetFee(ctx context.Context, tenantID, id int64) (*fees.StudentFee, error) {
	if f.fee != nil {
		return f.fee, nil
	}
	return nil, fees.ErrFeeNotFound
}
func (f *fakeFeeService) ListByStudent(ctx context.Context, tenantID, studentID int64) ([]*fees.StudentFee, error) {
	return nil, nil
}
func (f *fakeFeeService) RecordFeePayment(ctx context.Context, tenantID, feeID, amountCents int64) (*fees.StudentFee, error) {
	return f.fee, f.recordErr
}
func (f *fakeFeeService) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
func (f *fakeFeeService) ListReminderCandidates(ctx context.Context, now time.Time, cooldown time.Duration) ([]*fees.StudentFee, error) {
	return nil, nil
}
func (f *fakeFeeService) MarkNotified(ctx context.Context, feeID int64, at time.Time) error {
	return nil
}

// --- helpers ---

var (
	tenantAdmin = &auth.Principal{UserID: 7, TenantID: 42, Roles: []auth.Role{auth.RoleTenantAdmin}}
	staffUser   = &auth.Principal{UserID: 8, TenantID: 42, Roles: []auth.Role{auth.RoleStaff}}
	superAdmin  = &auth.Principal{UserID: 1, Roles: []auth.Role{auth.RoleSuperAdmin}}
)

func doRequest(t *testing.T, router *mux.Router, principal *auth.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if principal != nil {
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), principal))
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

// --- tests ---

func TestSubscriptionHandlers(t *testing.T) {
	plan := &catalog.Plan{ID: 1, Code: catalog.PlanStarter, BillingCycle: catalog.CycleMonthly}
	sub := &subscriptions.Subscription{
		ID: 10, TenantID: 42, PlanID: 1, BillingCycle: catalog.CycleMonthly,
		Status: subscriptions.StatusActive, Plan: plan,
	}

	newRouter := func(subs *fakeSubs) *mux.Router {
		router := mux.NewRouter()
		NewSubscriptionHandlers(subs, nil).RegisterRoutes(router)
		return router
	}

	t.Run("subscribe creates and returns 201", func(t *testing.T) {
		router := newRouter(&fakeSubs{created: sub})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscription",
			map[string]string{"plan_code": "starter", "billing_cycle": "monthly"})
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("staff cannot subscribe", func(t *testing.T) {
		router := newRouter(&fakeSubs{created: sub})
		recorder := doRequest(t, router, staffUser, http.MethodPost, "/subscription",
			map[string]string{"plan_code": "starter"})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("invalid plan code is rejected", func(t *testing.T) {
		router := newRouter(&fakeSubs{created: sub})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscription",
			map[string]string{"plan_code": "platinum"})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("unknown plan maps to 404", func(t *testing.T) {
		router := newRouter(&fakeSubs{createErr: catalog.ErrPlanNotFound})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscription",
			map[string]string{"plan_code": "premium", "billing_cycle": "annual"})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("no active subscription maps to 404", func(t *testing.T) {
		router := newRouter(&fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/subscription", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("active subscription is returned", func(t *testing.T) {
		router := newRouter(&fakeSubs{active: sub})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/subscription", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"starter"`)
	})

	t.Run("super admin reads another tenant", func(t *testing.T) {
		router := newRouter(&fakeSubs{active: sub})
		recorder := doRequest(t, router, superAdmin, http.MethodGet, "/subscription?tenant_id=42", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("missing principal is unauthorized", func(t *testing.T) {
		router := newRouter(&fakeSubs{active: sub})
		recorder := doRequest(t, router, nil, http.MethodGet, "/subscription", nil)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	})
}

func TestInvoiceHandlers(t *testing.T) {
	sub := &subscriptions.Subscription{ID: 10, TenantID: 42}
	inv := &invoices.Invoice{ID: 7, TenantID: 42, SubscriptionID: 10, InvoiceNumber: "INV-20240101-k3j9x0a2"}

	newRouter := func(invoiceService *fakeInvoiceService, subs *fakeSubs) *mux.Router {
		router := mux.NewRouter()
		NewInvoiceHandlers(invoiceService, subs, nil).RegisterRoutes(router)
		return router
	}

	t.Run("generate returns 201", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{invoice: inv}, &fakeSubs{active: sub})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscriptions/10/invoices", nil)
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("duplicate invoice maps to 409", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{generateErr: invoices.ErrDuplicateInvoice}, &fakeSubs{active: sub})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscriptions/10/invoices", nil)
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("foreign subscription maps to 404", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{invoice: inv}, &fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/subscriptions/10/invoices", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("bad date filter maps to 400", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{}, &fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/invoices?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("summary", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{}, &fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/invoices/summary", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("lookup by number", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{invoice: inv}, &fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/invoices/number/INV-20240101-k3j9x0a2", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"INV-20240101-k3j9x0a2"`)
	})

	t.Run("unknown number maps to 404", func(t *testing.T) {
		router := newRouter(&fakeInvoiceService{invoice: inv}, &fakeSubs{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/invoices/number/INV-20240101-zzzzzzzz", nil)
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestPaymentHandlers(t *testing.T) {
	inv := &invoices.Invoice{ID: 7, TenantID: 42, AmountCents: 1000}

	newRouter := func(paymentService *fakePaymentService) *mux.Router {
		router := mux.NewRouter()
		NewPaymentHandlers(paymentService, &fakeInvoiceService{invoice: inv}).RegisterRoutes(router)
		return router
	}

	t.Run("records a pending payment", func(t *testing.T) {
		router := newRouter(&fakePaymentService{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/invoices/7/payments",
			map[string]interface{}{"gateway": "razorpay", "transaction_id": "txn_001", "amount_cents": 1000})
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("duplicate transaction maps to 409", func(t *testing.T) {
		router := newRouter(&fakePaymentService{createErr: payments.ErrDuplicateTransaction})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/invoices/7/payments",
			map[string]interface{}{"gateway": "razorpay", "transaction_id": "txn_001", "amount_cents": 1000})
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("missing gateway maps to 400", func(t *testing.T) {
		router := newRouter(&fakePaymentService{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/invoices/7/payments",
			map[string]interface{}{"amount_cents": 1000})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("staff cannot record payments", func(t *testing.T) {
		router := newRouter(&fakePaymentService{})
		recorder := doRequest(t, router, staffUser, http.MethodPost, "/invoices/7/payments",
			map[string]interface{}{"gateway": "razorpay", "transaction_id": "txn_001", "amount_cents": 1000})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("summary", func(t *testing.T) {
		router := newRouter(&fakePaymentService{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/payments/summary", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"tenant_id":42`)
	})
}

func TestLimitHandlers(t *testing.T) {
	newRouter := func(checker *fakeLimits) *mux.Router {
		router := mux.NewRouter()
		NewLimitHandlers(checker).RegisterRoutes(router)
		return router
	}

	t.Run("allowed", func(t *testing.T) {
		router := newRouter(&fakeLimits{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/limits/students/check", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"allowed":true`)
	})

	t.Run("limit exceeded maps to 409", func(t *testing.T) {
		router := newRouter(&fakeLimits{err: &limits.LimitExceededError{
			Resource: limits.ResourceStudents, Current: 100, Limit: 100,
		}})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/limits/students/check", nil)
		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"allowed":false`)
	})

	t.Run("unknown resource maps to 400", func(t *testing.T) {
		router := newRouter(&fakeLimits{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodGet, "/limits/rooms/check", nil)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}

func TestPlanHandlers(t *testing.T) {
	newRouter := func(catalogService *fakeCatalog) *mux.Router {
		router := mux.NewRouter()
		NewPlanHandlers(catalogService).RegisterRoutes(router)
		return router
	}

	t.Run("tenant admin cannot create plans", func(t *testing.T) {
		router := newRouter(&fakeCatalog{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/plans",
			map[string]interface{}{"code": "starter", "billing_cycle": "monthly", "price_cents": 2900})
		assert.Equal(t, http.StatusForbidden, recorder.Code)
	})

	t.Run("super admin creates a plan", func(t *testing.T) {
		router := newRouter(&fakeCatalog{})
		recorder := doRequest(t, router, superAdmin, http.MethodPost, "/plans",
			map[string]interface{}{"code": "starter", "billing_cycle": "monthly", "price_cents": 2900})
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("duplicate active plan maps to 409", func(t *testing.T) {
		router := newRouter(&fakeCatalog{createErr: catalog.ErrDuplicatePlan})
		recorder := doRequest(t, router, superAdmin, http.MethodPost, "/plans",
			map[string]interface{}{"code": "starter", "billing_cycle": "monthly", "price_cents": 2900})
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})

	t.Run("anyone lists plans", func(t *testing.T) {
		router := newRouter(&fakeCatalog{plans: []*catalog.Plan{{ID: 1, Code: catalog.PlanStarter}}})
		recorder := doRequest(t, router, staffUser, http.MethodGet, "/plans", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

func TestFeeHandlers(t *testing.T) {
	fee := &fees.StudentFee{ID: 3, TenantID: 42, StudentID: 100, AmountCents: 50000, Status: fees.StatusPartiallyPaid}

	newRouter := func(feeService *fakeFeeService) *mux.Router {
		router := mux.NewRouter()
		NewFeeHandlers(feeService).RegisterRoutes(router)
		return router
	}

	t.Run("creates a fee", func(t *testing.T) {
		router := newRouter(&fakeFeeService{})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/students/100/fees",
			map[string]interface{}{"description": "Term 1 tuition", "amount_cents": 50000, "due_date": "2024-04-01T00:00:00Z"})
		assert.Equal(t, http.StatusCreated, recorder.Code)
	})

	t.Run("records a collection", func(t *testing.T) {
		router := newRouter(&fakeFeeService{fee: fee})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/fees/3/payments",
			map[string]interface{}{"amount_cents": 20000})
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("overpayment maps to 400", func(t *testing.T) {
		router := newRouter(&fakeFeeService{recordErr: fees.ErrOverpayment})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/fees/3/payments",
			map[string]interface{}{"amount_cents": 90000})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("settled fee maps to 409", func(t *testing.T) {
		router := newRouter(&fakeFeeService{recordErr: fees.ErrFeeAlreadyPaid})
		recorder := doRequest(t, router, tenantAdmin, http.MethodPost, "/fees/3/payments",
			map[string]interface{}{"amount_cents": 100})
		assert.Equal(t, http.StatusConflict, recorder.Code)
	})
}
