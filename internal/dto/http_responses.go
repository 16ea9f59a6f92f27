package dto

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized      = "UNAUTHORIZED"
	Forbidden         = "FORBIDDEN"
	NotFound          = "NOT_FOUND"
	InvalidState      = "INVALID_STATE"
	CapacityFull      = "CAPACITY_FULL"
	Duplicate         = "DUPLICATE"
	ItemsUnavailable  = "ITEMS_UNAVAILABLE"
	DiscountInvalid   = "DISCOUNT_INVALID"
	PaymentFailed     = "PAYMENT_FAILED"
	EmailNotVerified  = "EMAIL_NOT_VERIFIED"
	ValidationFailed  = "VALIDATION_FAILED"
	AlreadyRegistered = "ALREADY_REGISTERED"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Desc    string `json:"desc"`
	Details any    `json:"details,omitempty"`
}

// Message is the payload of responses that only confirm an action.
type Message struct {
	Message string `json:"message"`
}

func ErrorResponse(c *ginext.Context, status int, code, desc string, details any) {
	c.JSON(status, Response{
		Status: "error",
		Error: &Error{
			Code:    code,
			Desc:    desc,
			Details: details,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc, nil)
}

func BadResponseDetails(c *ginext.Context, code, desc string, details any) {
	ErrorResponse(c, http.StatusBadRequest, code, desc, details)
}

func InternalServerError(c *ginext.Context) {
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, InternalError, nil)
}

func UnauthorizedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, desc, nil)
}

func ForbiddenError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusForbidden, Forbidden, desc, nil)
}

func NotFoundError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusNotFound, NotFound, desc, nil)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessMessage(c *ginext.Context, status int, msg string) {
	c.JSON(status, Response{
		Status: "ok",
		Data:   Message{Message: msg},
	})
}

// Page wraps a paginated list.
type Page struct {
	Count    int `json:"count"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Results  any `json:"results"`
}
