package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/clubware/ms-go-memberships/app/entity"
	"github.com/clubware/ms-go-memberships/app/factory"
	"github.com/clubware/ms-go-memberships/app/mapper"
	"github.com/clubware/ms-go-memberships/app/policy"
	"github.com/clubware/ms-go-memberships/app/service"
	"github.com/clubware/ms-go-memberships/app/types"
)

type membershipService interface {
	CreateTemplate(ctx context.Context, params service.CreateTemplateParams) (*entity.SubscriptionTemplate, error)
	GetTemplate(ctx context.Context, id uint64) (*entity.SubscriptionTemplate, error)
	ListTemplates(ctx context.Context, organizationID uint64) ([]*entity.SubscriptionTemplate, error)
	CreateSubscription(ctx context.Context, params service.CreateSubscriptionParams) (*entity.CustomerSubscription, error)
	GetSubscription(ctx context.Context, id uint64) (*entity.CustomerSubscription, error)
	GetSubscriptionByCode(ctx context.Context, organizationID uint64, code string) (*entity.CustomerSubscription, error)
	ListSubscriptionsByCustomer(ctx context.Context, organizationID, customerID uint64) ([]*entity.CustomerSubscription, error)
	Validate(ctx context.Context, organizationID uint64, code string, item *policy.Item) (*service.ValidationOutcome, error)
	Use(ctx context.Context, organizationID uint64, code string, item policy.Item, quantity int64, cashier string) (*entity.SubscriptionUsage, error)
	Renew(ctx context.Context, id uint64, amountPaidCents int64) (*entity.CustomerSubscription, error)
	Pause(ctx context.Context, id uint64, reason string) (*entity.CustomerSubscription, error)
	Cancel(ctx context.Context, id uint64, reason string) (*entity.CustomerSubscription, error)
	ListUsages(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionUsage, error)
	ListRenewals(ctx context.Context, subscriptionID uint64) ([]*entity.SubscriptionRenewal, error)
	GetStats(ctx context.Context, organizationID uint64) (*service.OrganizationStats, error)
}

type MembershipController struct {
	membershipService membershipService
	logger            logrus.FieldLogger
}

func NewMembershipController(membershipService membershipService) *MembershipController {
	return &MembershipController{
		membershipService: membershipService,
		logger:            factory.NewModuleLogger("membership-controller"),
	}
}

func (c *MembershipController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *MembershipController) CreateTemplate(ctx echo.Context) error {
	req, err := types.NewCreateTemplateRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	params := service.CreateTemplateParams{
		OrganizationID:     req.OrganizationID,
		Name:               req.Name,
		Kind:               entity.SubscriptionKind(req.Kind),
		DurationValue:      req.DurationValue,
		DurationUnit:       entity.DurationUnit(req.DurationUnit),
		PriceCents:         req.PriceCents,
		Currency:           req.Currency,
		DailyLimit:         req.DailyLimit,
		WeeklyLimit:        req.WeeklyLimit,
		TotalLimit:         req.TotalLimit,
		IncludedCategories: req.IncludedCategories,
		ExcludedCategories: req.ExcludedCategories,
		MaxPriceCents:      req.MaxPriceCents,
		AllowedDays:        req.AllowedDays,
		AutoRenewable:      req.AutoRenewable,
		RenewableManually:  req.RenewableManually,
	}
	if req.AllowedHoursFrom != "" {
		from, _ := types.ParseMinuteOfDay(req.AllowedHoursFrom)
		to, _ := types.ParseMinuteOfDay(req.AllowedHoursTo)
		params.AllowedFromMinute = &from
		params.AllowedToMinute = &to
	}

	tpl, err := c.membershipService.CreateTemplate(ctx.Request().Context(), params)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("Create template failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusCreated, mapper.TemplateToResponse(tpl))
}

func (c *MembershipController) GetTemplate(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid template id")
	}

	tpl, err := c.membershipService.GetTemplate(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTemplateNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "template not found")
		}
		c.logger.WithError(err).Error("Get template failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.TemplateToResponse(tpl))
}

func (c *MembershipController) ListTemplates(ctx echo.Context) error {
	organizationID, err := types.ParseOrganizationID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.membershipService.ListTemplates(ctx.Request().Context(), organizationID)
	if err != nil {
		c.logger.WithError(err).Error("List templates failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListTemplatesResponse{Templates: mapper.TemplatesToResponse(items)})
}

func (c *MembershipController) CreateSubscription(ctx echo.Context) error {
	req, err := types.NewCreateSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	params := service.CreateSubscriptionParams{
		OrganizationID:  req.OrganizationID,
		CustomerID:      req.CustomerID,
		TemplateID:      req.TemplateID,
		AmountPaidCents: req.AmountPaidCents,
	}
	if req.StartDate != "" {
		start, _ := time.Parse(time.RFC3339, req.StartDate)
		params.StartDate = &start
	}

	sub, err := c.membershipService.CreateSubscription(ctx.Request().Context(), params)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrTemplateNotFound):
			return c.writeError(ctx, http.StatusNotFound, "template not found")
		case errors.Is(err, service.ErrTemplateInactive):
			return c.writeError(ctx, http.StatusConflict, "template is not active")
		default:
			c.logger.WithError(err).Error("Create subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(sub),
	})
}

func (c *MembershipController) GetSubscription(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid subscription id")
	}

	sub, err := c.membershipService.GetSubscription(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		}
		c.logger.WithError(err).Error("Get subscription failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(sub),
	})
}

func (c *MembershipController) GetSubscriptionByCode(ctx echo.Context) error {
	organizationID, err := types.ParseOrganizationID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	code := ctx.Param("code")
	if code == "" {
		return c.writeError(ctx, http.StatusBadRequest, "code is required")
	}

	sub, err := c.membershipService.GetSubscriptionByCode(ctx.Request().Context(), organizationID, code)
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		}
		c.logger.WithError(err).Error("Get subscription by code failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(sub),
	})
}

func (c *MembershipController) ListSubscriptions(ctx echo.Context) error {
	organizationID, err := types.ParseOrganizationID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	customerID, err := parseQueryUint(ctx, "customer_id")
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid customer_id")
	}

	items, err := c.membershipService.ListSubscriptionsByCustomer(ctx.Request().Context(), organizationID, customerID)
	if err != nil {
		c.logger.WithError(err).Error("List subscriptions failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListSubscriptionsResponse{
		Subscriptions: mapper.SubscriptionsToResponse(items),
	})
}

// ValidateSubscription answers with a value result in every expected case:
// an invalid membership is a 200 with valid=false, not an error status.
func (c *MembershipController) ValidateSubscription(ctx echo.Context) error {
	req, err := types.NewValidateSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	outcome, err := c.membershipService.Validate(ctx.Request().Context(), req.OrganizationID, req.Code, itemFromPayload(req.Item))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		default:
			c.logger.WithError(err).Error("Validate subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.ValidationOutcomeToResponse(outcome))
}

// UseSubscription distinguishes "cannot redeem now" (422 with the structured
// reason) from a system fault (500).
func (c *MembershipController) UseSubscription(ctx echo.Context) error {
	req, err := types.NewUseSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item := policy.Item{
		Name:       req.Item.Name,
		Category:   req.Item.Category,
		PriceCents: req.Item.PriceCents,
	}
	usage, err := c.membershipService.Use(ctx.Request().Context(), req.OrganizationID, req.Code, item, req.Quantity, req.Cashier)
	if err != nil {
		var vErr *service.ValidationError
		switch {
		case errors.As(err, &vErr):
			return ctx.JSON(http.StatusUnprocessableEntity, &types.ValidationResponse{
				Valid:  false,
				Reason: string(vErr.Reason),
			})
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		default:
			c.logger.WithError(err).Error("Use subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusCreated, mapper.UsageToResponse(usage))
}

func (c *MembershipController) RenewSubscription(ctx echo.Context) error {
	req, err := types.NewRenewSubscriptionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	sub, err := c.membershipService.Renew(ctx.Request().Context(), req.ID, req.AmountPaidCents)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return c.writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		case errors.Is(err, service.ErrRenewalNotAllowed):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Renew subscription failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{
		Subscription: mapper.SubscriptionToResponse(sub),
	})
}

func (c *MembershipController) PauseSubscription(ctx echo.Context) error {
	return c.transition(ctx, c.membershipService.Pause, "Subscription paused")
}

func (c *MembershipController) CancelSubscription(ctx echo.Context) error {
	return c.transition(ctx, c.membershipService.Cancel, "Subscription cancelled")
}

func (c *MembershipController) transition(
	ctx echo.Context,
	fn func(ctx context.Context, id uint64, reason string) (*entity.CustomerSubscription, error),
	message string,
) error {
	req, err := types.NewTransitionRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	sub, err := fn(ctx.Request().Context(), req.ID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubscriptionNotFound):
			return c.writeError(ctx, http.StatusNotFound, "subscription not found")
		case errors.Is(err, service.ErrInvalidTransition):
			return c.writeError(ctx, http.StatusConflict, err.Error())
		default:
			c.logger.WithError(err).Error("Subscription transition failed")
			return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{
		Message:      message,
		Subscription: mapper.SubscriptionToResponse(sub),
	})
}

func (c *MembershipController) ListUsages(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid subscription id")
	}

	items, err := c.membershipService.ListUsages(ctx.Request().Context(), id)
	if err != nil {
		c.logger.WithError(err).Error("List usages failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListUsagesResponse{Usages: mapper.UsagesToResponse(items)})
}

func (c *MembershipController) ListRenewals(ctx echo.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid subscription id")
	}

	items, err := c.membershipService.ListRenewals(ctx.Request().Context(), id)
	if err != nil {
		c.logger.WithError(err).Error("List renewals failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &types.ListRenewalsResponse{Renewals: mapper.RenewalsToResponse(items)})
}

func (c *MembershipController) GetStats(ctx echo.Context) error {
	organizationID, err := types.ParseOrganizationID(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	stats, err := c.membershipService.GetStats(ctx.Request().Context(), organizationID)
	if err != nil {
		c.logger.WithError(err).Error("Get stats failed")
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.StatsToResponse(stats))
}

func (c *MembershipController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}

func itemFromPayload(payload *types.ItemPayload) *policy.Item {
	if payload == nil {
		return nil
	}
	return &policy.Item{
		Name:       payload.Name,
		Category:   payload.Category,
		PriceCents: payload.PriceCents,
	}
}

func parseID(ctx echo.Context) (uint64, error) {
	return strconv.ParseUint(ctx.Param("id"), 10, 64)
}

func parseQueryUint(ctx echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(ctx.QueryParam(name), 10, 64)
}
