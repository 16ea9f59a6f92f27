package service

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/internal/auth"
	"eventhub/internal/mailer"
	"eventhub/internal/model"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
)

type AccountHandlers interface {
	Register(ctx *ginext.Context)
	VerifyEmail(ctx *ginext.Context)
	ResendVerification(ctx *ginext.Context)
	ObtainToken(ctx *ginext.Context)
	RefreshToken(ctx *ginext.Context)
	RevokeToken(ctx *ginext.Context)
	GetProfile(ctx *ginext.Context)
	UpdateProfile(ctx *ginext.Context)
	ChangePassword(ctx *ginext.Context)
	ForgotPassword(ctx *ginext.Context)
}

type CatalogHandlers interface {
	ListEvents(ctx *ginext.Context)
	GetEvent(ctx *ginext.Context)
	ListPresentations(ctx *ginext.Context)
	GetPresentation(ctx *ginext.Context)
	EnrollPresentation(ctx *ginext.Context)
	ListSoloCompetitions(ctx *ginext.Context)
	GetSoloCompetition(ctx *ginext.Context)
	RegisterSolo(ctx *ginext.Context)
	ListGroupCompetitions(ctx *ginext.Context)
	GetGroupCompetition(ctx *ginext.Context)
	MyEnrollments(ctx *ginext.Context)
	MySoloRegistrations(ctx *ginext.Context)
}

type TeamHandlers interface {
	RegisterTeam(ctx *ginext.Context)
	MyTeams(ctx *ginext.Context)
	GetMyTeam(ctx *ginext.Context)
	DeleteTeam(ctx *ginext.Context)
	AddTeamToCart(ctx *ginext.Context)
	UploadGovernmentID(ctx *ginext.Context)
}

type ShopHandlers interface {
	GetCart(ctx *ginext.Context)
	AddCartItem(ctx *ginext.Context)
	RemoveCartItem(ctx *ginext.Context)
	ApplyDiscount(ctx *ginext.Context)
	RemoveDiscount(ctx *ginext.Context)
	Checkout(ctx *ginext.Context)
	PartialCheckout(ctx *ginext.Context)
	ListOrders(ctx *ginext.Context)
	GetOrder(ctx *ginext.Context)
	CancelOrder(ctx *ginext.Context)
	PayOrder(ctx *ginext.Context)
	BatchPay(ctx *ginext.Context)
	PaymentCallback(ctx *ginext.Context)
	MyRegistrations(ctx *ginext.Context)
}

type CertificateHandlers interface {
	EligiblePresentationCertificates(ctx *ginext.Context)
	RequestPresentationCertificate(ctx *ginext.Context)
	EligibleSoloCertificates(ctx *ginext.Context)
	RequestSoloCertificate(ctx *ginext.Context)
	EligibleGroupCertificates(ctx *ginext.Context)
	RequestGroupCertificate(ctx *ginext.Context)
	GetCertificate(ctx *ginext.Context)
	DownloadCertificate(ctx *ginext.Context)
}

type JobHandlers interface {
	ListJobs(ctx *ginext.Context)
	GetJob(ctx *ginext.Context)
}

type AdminHandlers interface {
	CreateEvent(ctx *ginext.Context)
	CreatePresentation(ctx *ginext.Context)
	CreateSoloCompetition(ctx *ginext.Context)
	CreateGroupCompetition(ctx *ginext.Context)
	SetCatalogActive(catalog string) func(*ginext.Context)
	CreateDiscountCode(ctx *ginext.Context)
	CreatePaymentApp(ctx *ginext.Context)
	ListPaymentApps(ctx *ginext.Context)
	ListTeamsForReview(ctx *ginext.Context)
	ApproveTeam(ctx *ginext.Context)
	RejectTeam(ctx *ginext.Context)
	ApproveGovernmentID(ctx *ginext.Context)
	RejectGovernmentID(ctx *ginext.Context)
	VerifyCertificate(ctx *ginext.Context)
	CreateTag(ctx *ginext.Context)
	CreateJob(ctx *ginext.Context)
	Reconcile(ctx *ginext.Context)
}

type Service interface {
	AccountHandlers
	CatalogHandlers
	TeamHandlers
	ShopHandlers
	CertificateHandlers
	JobHandlers
	AdminHandlers
}

// Store is the persistence the handlers use.
type Store interface {
	repo.UserStore
	repo.CatalogStore
	repo.TeamStore
	repo.ShopStore
	repo.CertificateStore
	repo.JobStore
	CreatePaymentApp(ctx context.Context, app *model.PaymentApp) (int64, error)
	ListPaymentApps(ctx context.Context) ([]model.PaymentApp, error)
}

// Payments drives gateway payments and anything that must consult the gateway first.
type Payments interface {
	InitiateOrder(ctx context.Context, user *model.User, orderUUID string, app *string) (*reconciler.PaymentStart, error)
	InitiateBatch(ctx context.Context, user *model.User, orderUUIDs []string, app *string) (*reconciler.PaymentStart, error)
	HandleCallback(ctx context.Context, authority, status string) string
	RemoveCartItem(ctx context.Context, userID, cartItemID int64) error
	RunOnce(ctx context.Context) (*reconciler.Report, error)
}

// Files stores uploaded documents and returns the URL they are served from.
type Files interface {
	Save(ctx context.Context, dir, name string, r io.Reader) (string, error)
}

type Config struct {
	VerificationTTL time.Duration
	// PublicBaseURL prefixes links handed to clients, such as certificate downloads.
	PublicBaseURL   string
	MaxUploadBytes  int64
}

type service struct {
	store  Store
	pay    Payments
	tokens *auth.TokenManager
	mail   mailer.Mailer
	files  Files
	cfg    Config
	log    *zerolog.Logger
	now    func() time.Time
}

func NewService(store Store, pay Payments, tokens *auth.TokenManager, mail mailer.Mailer, files Files, cfg Config, logger *zerolog.Logger) Service {
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 10 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	return &service{
		store:  store,
		pay:    pay,
		tokens: tokens,
		mail:   mail,
		files:  files,
		cfg:    cfg,
		log:    logger,
		now:    time.Now,
	}
}
