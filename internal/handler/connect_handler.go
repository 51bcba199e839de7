package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/offer-checkout/internal/dto"
	"github.com/prohmpiriya/offer-checkout/internal/service"
	"github.com/prohmpiriya/offer-checkout/pkg/response"
)

// ConnectHandler handles connect account onboarding endpoints
type ConnectHandler struct {
	connectService service.ConnectService
}

// NewConnectHandler creates a new ConnectHandler
func NewConnectHandler(connectService service.ConnectService) *ConnectHandler {
	return &ConnectHandler{connectService: connectService}
}

// CreateAccount handles POST /connect/account
func (h *ConnectHandler) CreateAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	accountID, err := h.connectService.CreateConnectAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.ConnectAccountResponse{AccountID: accountID}))
}

// GetAccount handles GET /connect/account
func (h *ConnectHandler) GetAccount(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	accountID, err := h.connectService.GetConnectAccount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.ConnectAccountResponse{AccountID: accountID}))
}

// GetAccountStatus handles GET /connect/account/status
func (h *ConnectHandler) GetAccountStatus(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	status, err := h.connectService.GetConnectAccountStatus(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(status))
}

// CreateLoginLink handles POST /connect/account/login-link
func (h *ConnectHandler) CreateLoginLink(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	link, err := h.connectService.CreateLoginLink(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.LinkResponse{URL: link}))
}

// CreateOnboardingLink handles POST /connect/account/onboarding-link
func (h *ConnectHandler) CreateOnboardingLink(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	link, err := h.connectService.CreateAccountLink(c.Request.Context(), userID, c.GetHeader("Origin"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(&dto.LinkResponse{URL: link}))
}
