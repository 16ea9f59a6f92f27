package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func key(typ string, id int64) string { return fmt.Sprintf("%s:%d", typ, id) }

type fakeStore struct {
	Store

	users   map[int64]*model.User
	nextID  int64
	revoked map[string]bool

	items         map[string]*model.Item
	statuses      map[string]string
	enrolled      []string
	enrollCreated bool
	cartAdds      []string

	groups       map[int64]*model.GroupCompetition
	teams        map[int64]*model.CompetitionTeam
	createdTeam  *repo.NewTeam
	deletedTeams []int64
	memberships  map[int64]*model.TeamMembership
	govIDs       map[int64]string

	cart         *model.Cart
	discounts    map[string]*model.DiscountCode
	redemptions  int
	cartDiscount *int64

	certs     map[string]*model.Certificate
	jobFilter repo.JobFilter
	jobErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[int64]*model.User{},
		nextID:      100,
		revoked:     map[string]bool{},
		items:       map[string]*model.Item{},
		statuses:    map[string]string{},
		groups:      map[int64]*model.GroupCompetition{},
		teams:       map[int64]*model.CompetitionTeam{},
		memberships: map[int64]*model.TeamMembership{},
		govIDs:      map[int64]string{},
		cart:        &model.Cart{ID: 1, UserID: 1},
		discounts:   map[string]*model.DiscountCode{},
		certs:       map[string]*model.Certificate{},
	}
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrUserNotFound
}

func (f *fakeStore) GetUsersByEmails(_ context.Context, emails []string) ([]model.User, error) {
	var out []model.User
	for _, e := range emails {
		for _, u := range f.users {
			if strings.EqualFold(u.Email, e) {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) (int64, error) {
	if _, err := f.GetUserByEmail(context.Background(), u.Email); err == nil {
		return 0, repo.ErrEmailTaken
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.users[cp.ID] = &cp
	return cp.ID, nil
}

func (f *fakeStore) SetVerificationCode(_ context.Context, userID int64, code string, expiresAt time.Time) error {
	u := f.users[userID]
	u.VerificationCode, u.VerificationExpiresAt = &code, &expiresAt
	return nil
}

func (f *fakeStore) ActivateUser(_ context.Context, userID int64) error {
	u := f.users[userID]
	u.IsActive, u.VerificationCode, u.VerificationExpiresAt = true, nil, nil
	return nil
}

func (f *fakeStore) SetPassword(_ context.Context, userID int64, hash string) error {
	f.users[userID].PasswordHash = hash
	return nil
}

func (f *fakeStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], nil
}

func (f *fakeStore) RevokeToken(_ context.Context, jti string, _ time.Time) error {
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) GetItem(_ context.Context, itemType string, id int64) (*model.Item, error) {
	it, ok := f.items[key(itemType, id)]
	if !ok {
		return nil, repo.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (f *fakeStore) GetEnrollmentStatus(_ context.Context, itemType string, itemID, _ int64) (string, error) {
	return f.statuses[key(itemType, itemID)], nil
}

func (f *fakeStore) EnrollFree(_ context.Context, itemType string, itemID, _ int64) (bool, error) {
	f.enrolled = append(f.enrolled, key(itemType, itemID))
	return f.enrollCreated, nil
}

func (f *fakeStore) AddCartItem(_ context.Context, _ int64, itemType string, itemID int64) (*model.CartItem, bool, error) {
	f.cartAdds = append(f.cartAdds, key(itemType, itemID))
	return &model.CartItem{ID: 99, ItemType: itemType, ItemID: itemID, Status: model.CartItemOwned}, true, nil
}

func (f *fakeStore) GetGroupCompetition(_ context.Context, id int64) (*model.GroupCompetition, error) {
	gc, ok := f.groups[id]
	if !ok {
		return nil, repo.ErrCompetitionNotFound
	}
	cp := *gc
	return &cp, nil
}

func (f *fakeStore) CreateTeam(_ context.Context, nt repo.NewTeam) (*model.CompetitionTeam, error) {
	f.createdTeam = &nt
	return &model.CompetitionTeam{
		ID: 5, Name: nt.Name, LeaderID: nt.LeaderID, GroupCompetitionID: nt.GroupCompetitionID, Status: model.TeamInCart,
	}, nil
}

func (f *fakeStore) GetTeam(_ context.Context, id int64) (*model.CompetitionTeam, error) {
	t, ok := f.teams[id]
	if !ok {
		return nil, repo.ErrTeamNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) DeleteTeam(_ context.Context, id int64) error {
	f.deletedTeams = append(f.deletedTeams, id)
	return nil
}

func (f *fakeStore) GetMembership(_ context.Context, id int64) (*model.TeamMembership, error) {
	m, ok := f.memberships[id]
	if !ok {
		return nil, repo.ErrMembershipNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) SetGovernmentID(_ context.Context, membershipID int64, url string) error {
	f.govIDs[membershipID] = url
	return nil
}

func (f *fakeStore) GetCart(_ context.Context, _ int64, _ *int64) (*model.Cart, error) {
	cp := *f.cart
	cp.Items = append([]model.CartItem(nil), f.cart.Items...)
	return &cp, nil
}

func (f *fakeStore) GetDiscountByCode(_ context.Context, code string) (*model.DiscountCode, error) {
	dc, ok := f.discounts[code]
	if !ok {
		return nil, repo.ErrDiscountNotFound
	}
	return dc, nil
}

func (f *fakeStore) GetDiscountByID(_ context.Context, id int64) (*model.DiscountCode, error) {
	for _, dc := range f.discounts {
		if dc.ID == id {
			return dc, nil
		}
	}
	return nil, repo.ErrDiscountNotFound
}

func (f *fakeStore) CountUserRedemptions(context.Context, int64, int64) (int, error) {
	return f.redemptions, nil
}

func (f *fakeStore) SetCartDiscount(_ context.Context, _ int64, codeID *int64) error {
	f.cartDiscount = codeID
	f.cart.DiscountCodeID = codeID
	return nil
}

func (f *fakeStore) GetPresentationCertificate(_ context.Context, vid string) (*model.Certificate, error) {
	c, ok := f.certs[vid]
	if !ok {
		return nil, repo.ErrCertificateNotFound
	}
	return c, nil
}

func (f *fakeStore) ListJobs(_ context.Context, jf repo.JobFilter) ([]model.Job, int, error) {
	f.jobFilter = jf
	return []model.Job{}, 0, nil
}

func (f *fakeStore) GetJob(context.Context, int64) (*model.Job, error) {
	return nil, f.jobErr
}

type fakePayments struct {
	Payments

	start       *reconciler.PaymentStart
	initiateErr error
	callbackURL string
	callback    [2]string
}

func (p *fakePayments) InitiateOrder(context.Context, *model.User, string, *string) (*reconciler.PaymentStart, error) {
	return p.start, p.initiateErr
}

func (p *fakePayments) HandleCallback(_ context.Context, authority, status string) string {
	p.callback = [2]string{authority, status}
	return p.callbackURL
}

type fakeMailer struct {
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) {
	m.sent = append(m.sent, msg)
}

type fakeFiles struct {
	saved map[string][]byte
}

func (f *fakeFiles) Save(_ context.Context, dir, name string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	url := "/media/" + dir + "/" + name
	f.saved[url] = b
	return url, nil
}

type harness struct {
	svc    *service
	store  *fakeStore
	pay    *fakePayments
	mail   *fakeMailer
	files  *fakeFiles
	tokens *auth.TokenManager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	h := &harness{
		store: newFakeStore(),
		pay:   &fakePayments{},
		mail:  &fakeMailer{},
		files: &fakeFiles{saved: map[string][]byte{}},
		tokens: auth.NewTokenManager(auth.TokenConfig{
			Secret: "test-secret", Issuer: "eventhub", AccessTTL: time.Minute,
			RefreshTTL: time.Hour, RefreshWindow: 24 * time.Hour,
		}),
	}
	h.svc = &service{
		store:  h.store,
		pay:    h.pay,
		tokens: h.tokens,
		mail:   h.mail,
		files:  h.files,
		cfg:    Config{VerificationTTL: 10 * time.Minute, PublicBaseURL: "https://api.example/", MaxUploadBytes: 5 << 20},
		log:    &logger,
		now:    func() time.Time { return testNow },
	}
	h.store.users[1] = &model.User{ID: 1, Email: "leader@example.com", FirstName: "Sara", IsActive: true}
	return h
}

// do runs handler behind route as userID. A zero userID makes an anonymous request.
func (h *harness) do(handler func(*ginext.Context), method, route, target string, body any, userID int64) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	return h.doRequest(handler, route, httptest.NewRequest(method, target, reader), userID)
}

func (h *harness) doRequest(handler func(*ginext.Context), route string, req *http.Request, userID int64) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(req.Method, route, func(c *gin.Context) {
		if userID != 0 {
			c.Set(auth.CtxUserID, userID)
		}
		handler(c)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Status string          `json:"status"`
	Error  *dto.Error      `json:"error"`
	Data   json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, w)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}

func data[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &v), w.Body.String())
	return v
}
