package api

import (
	"github.com/gin-contrib/cors"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventhub/cmd/middleware"
	"eventhub/internal/auth"
	"eventhub/internal/repo"
	"eventhub/internal/service"
)

type Routers struct {
	Service     service.Service
	Tokens      *auth.TokenManager
	Users       middleware.UserLookup
	Logger      *zerolog.Logger
	CORSOrigins []string
	MediaURL    string
	MediaRoot   string
}

func NewRouters(r *Routers) *ginext.Engine {
	app := ginext.New("release")

	corsCfg := cors.DefaultConfig()
	if len(r.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = r.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AddAllowHeaders("Authorization")

	app.Use(middleware.LoggingMiddleware(r.Logger))
	app.Use(cors.New(corsCfg))
	if r.MediaURL != "" && r.MediaRoot != "" {
		app.Static(r.MediaURL, r.MediaRoot)
	}

	s := r.Service
	v1 := app.Group("/v1")

	accounts := v1.Group("/accounts")
	accounts.POST("/register", s.Register)
	accounts.POST("/verify-email", s.VerifyEmail)
	accounts.POST("/resend-verify-email", s.ResendVerification)
	accounts.POST("/token", s.ObtainToken)
	accounts.POST("/token/refresh", s.RefreshToken)
	accounts.POST("/token/blacklist", s.RevokeToken)
	accounts.POST("/forgot-password", s.ForgotPassword)

	v1.GET("/events", s.ListEvents)
	v1.GET("/events/:id", s.GetEvent)
	v1.GET("/presentations", s.ListPresentations)
	v1.GET("/presentations/:id", s.GetPresentation)
	v1.GET("/solo-competitions", s.ListSoloCompetitions)
	v1.GET("/solo-competitions/:id", s.GetSoloCompetition)
	v1.GET("/group-competitions", s.ListGroupCompetitions)
	v1.GET("/group-competitions/:id", s.GetGroupCompetition)
	v1.GET("/jobs", s.ListJobs)
	v1.GET("/jobs/:id", s.GetJob)
	v1.GET("/payment/callback", s.PaymentCallback)
	v1.GET("/certificates/:kind/:verificationId", s.GetCertificate)
	v1.GET("/certificates/:kind/:verificationId/download", s.DownloadCertificate)

	user := v1.Group("", middleware.Auth(r.Tokens))
	user.GET("/accounts/profile", s.GetProfile)
	user.PATCH("/accounts/profile", s.UpdateProfile)
	user.POST("/accounts/change-password", s.ChangePassword)

	user.POST("/presentations/:id/enroll", s.EnrollPresentation)
	user.POST("/solo-competitions/:id/register", s.RegisterSolo)
	user.POST("/group-competitions/:id/register-team", s.RegisterTeam)

	user.GET("/my-teams", s.MyTeams)
	user.GET("/my-teams/:id", s.GetMyTeam)
	user.DELETE("/my-teams/:id", s.DeleteTeam)
	user.POST("/my-teams/:id/add-to-cart", s.AddTeamToCart)
	user.POST("/my-teams/:id/memberships/:membershipId/government-id", s.UploadGovernmentID)
	user.GET("/my-enrollments/presentations", s.MyEnrollments)
	user.GET("/my-registrations/solo-competitions", s.MySoloRegistrations)

	user.GET("/cart", s.GetCart)
	user.POST("/cart/items", s.AddCartItem)
	user.DELETE("/cart/items/:id", s.RemoveCartItem)
	user.POST("/cart/discount", s.ApplyDiscount)
	user.DELETE("/cart/discount", s.RemoveDiscount)

	user.POST("/orders/checkout", s.Checkout)
	user.POST("/orders/partial-checkout", s.PartialCheckout)
	user.POST("/orders/batch-pay", s.BatchPay)
	user.GET("/orders", s.ListOrders)
	user.GET("/orders/:id", s.GetOrder)
	user.POST("/orders/:id/cancel", s.CancelOrder)
	user.POST("/orders/:id/pay", s.PayOrder)
	user.GET("/registrations", s.MyRegistrations)

	user.GET("/certificates/presentations/eligible", s.EligiblePresentationCertificates)
	user.POST("/certificates/presentations/:enrollmentId/request", s.RequestPresentationCertificate)
	user.GET("/certificates/competitions/solo/eligible", s.EligibleSoloCertificates)
	user.POST("/certificates/competitions/solo/request", s.RequestSoloCertificate)
	user.GET("/certificates/competitions/group/eligible", s.EligibleGroupCertificates)
	user.POST("/certificates/competitions/group/:competitionId/request", s.RequestGroupCertificate)

	admin := v1.Group("/admin", middleware.Auth(r.Tokens), middleware.RequireAdmin(r.Users, r.Logger))
	admin.POST("/events", s.CreateEvent)
	admin.PATCH("/events/:id/active", s.SetCatalogActive(repo.CatalogEvents))
	admin.POST("/presentations", s.CreatePresentation)
	admin.PATCH("/presentations/:id/active", s.SetCatalogActive(repo.CatalogPresentations))
	admin.POST("/solo-competitions", s.CreateSoloCompetition)
	admin.PATCH("/solo-competitions/:id/active", s.SetCatalogActive(repo.CatalogSoloCompetitions))
	admin.POST("/group-competitions", s.CreateGroupCompetition)
	admin.PATCH("/group-competitions/:id/active", s.SetCatalogActive(repo.CatalogGroupCompetitions))

	admin.POST("/discount-codes", s.CreateDiscountCode)
	admin.GET("/payment-apps", s.ListPaymentApps)
	admin.POST("/payment-apps", s.CreatePaymentApp)

	admin.GET("/teams", s.ListTeamsForReview)
	admin.POST("/teams/:id/approve", s.ApproveTeam)
	admin.POST("/teams/:id/reject", s.RejectTeam)
	admin.POST("/memberships/:id/government-id/approve", s.ApproveGovernmentID)
	admin.POST("/memberships/:id/government-id/reject", s.RejectGovernmentID)
	admin.POST("/certificates/:kind/:id/verify", s.VerifyCertificate)

	admin.POST("/tags", s.CreateTag)
	admin.POST("/jobs", s.CreateJob)
	admin.POST("/reconcile", s.Reconcile)

	return app
}
