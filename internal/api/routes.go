package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/societyhub/society-server/internal/models"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	admin := s.requireRole(models.RoleAdmin)
	resident := s.requireRole(models.RoleOwner, models.RoleTenant)

	// Health check
	r.Get("/health", s.HandleHealth)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.HandleRegister)
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Current user
		r.Get("/me", s.HandleGetCurrentUser)
		r.Get("/me/flat", s.HandleGetMyFlat)

		// Societies
		r.Route("/societies", func(r chi.Router) {
			r.With(admin).Post("/", s.HandleCreateSociety)
			r.Get("/", s.HandleListSocieties)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetSociety)
				r.With(admin).Put("/", s.HandleUpdateSociety)
				r.With(admin).Delete("/", s.HandleDeleteSociety)
				r.With(admin).Post("/buildings", s.HandleCreateBuilding)
				r.With(admin).Get("/buildings", s.HandleListBuildings)
				r.With(admin).Get("/flats", s.HandleListFlats)
				r.With(admin).Get("/activity", s.HandleListSocietyActivity)
				r.With(admin).Get("/members", s.HandleListSocietyMembers)
			})
		})

		// Buildings
		r.With(admin).Post("/buildings/{id}/flats/generate", s.HandleGenerateFlats)

		// Flats
		r.Route("/flats/{id}", func(r chi.Router) {
			r.Get("/", s.HandleGetFlat)
			r.Put("/rent-amount", s.HandleSetRentAmount)
			r.With(admin).Put("/owner", s.HandleAssignOwner)
			r.With(admin).Delete("/owner", s.HandleRemoveOwner)
			r.With(s.requireRole(models.RoleAdmin, models.RoleOwner)).Put("/tenant", s.HandleAssignTenant)
			r.With(s.requireRole(models.RoleAdmin, models.RoleOwner)).Delete("/tenant", s.HandleRemoveTenant)
		})

		// Ownership requests
		r.Route("/ownership-requests", func(r chi.Router) {
			r.With(s.requireRole(models.RoleOwner)).Post("/", s.HandleSubmitOwnershipRequest)
			r.Get("/", s.HandleListOwnershipRequests)
			r.With(admin).Post("/{id}/review", s.HandleReviewOwnershipRequest)
		})

		// Billing
		r.Route("/billing", func(r chi.Router) {
			r.Use(admin)
			r.Post("/rent", s.HandleGenerateRent)
			r.Post("/maintenance", s.HandleGenerateMaintenance)
		})

		// Bills
		r.Route("/bills/{type}", func(r chi.Router) {
			r.Get("/", s.HandleListBills)
			r.With(resident).Post("/{id}/pay", s.HandlePayBill)
		})

		// Complaints
		r.Route("/complaints", func(r chi.Router) {
			r.With(resident).Post("/", s.HandleCreateComplaint)
			r.Get("/", s.HandleListComplaints)
			r.With(admin).Put("/{id}/status", s.HandleUpdateComplaintStatus)
		})

		// Announcements
		r.Route("/announcements", func(r chi.Router) {
			r.With(admin).Post("/", s.HandleCreateAnnouncement)
			r.Get("/", s.HandleListAnnouncements)
		})
	})
}
