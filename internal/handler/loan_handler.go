package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"library/internal/model"
	"library/internal/service"
)

// LoanHandler serves the borrow and return endpoints.
type LoanHandler struct {
	svc service.LoanService
}

// NewLoanHandler creates a new loan handler.
func NewLoanHandler(svc service.LoanService) *LoanHandler {
	return &LoanHandler{svc: svc}
}

// CreateLoanRequest is the body of POST /loans. The borrower is the caller.
type CreateLoanRequest struct {
	BookID uint `json:"book_id" validate:"required"`
}

// ListLoans godoc
// @Summary List loans
// @Description Librarians see every loan, students only their own.
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "all, active or returned"
// @Success 200 {array} LoanResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c echo.Context) error {
	caller, err := CurrentUser(c)
	if err != nil {
		return err
	}
	status, err := service.ParseLoanStatusFilter(c.QueryParam("status"))
	if err != nil {
		return respondError(c, err)
	}
	loans, err := h.svc.ListLoans(c.Request().Context(), caller, status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newLoanResponses(loans))
}

// GetLoan godoc
// @Summary Get loan by id
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c echo.Context) error {
	caller, err := CurrentUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	loan, err := h.svc.GetLoan(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	if !caller.IsLibrarian() && !loan.Student.ID.Equal(caller.ID) {
		return forbidden("not your loan")
	}
	return c.JSON(http.StatusOK, newLoanResponse(*loan))
}

// CreateLoan godoc
// @Summary Borrow a book
// @Tags loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateLoanRequest true "Book to borrow"
// @Success 201 {object} LoanResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /loans [post]
func (h *LoanHandler) CreateLoan(c echo.Context) error {
	caller, err := CurrentUser(c)
	if err != nil {
		return err
	}
	var req CreateLoanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	loan, err := h.svc.CreateLoan(c.Request().Context(), caller.ID.Value(), model.ID(req.BookID))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newLoanResponse(*loan))
}

// ReturnLoan godoc
// @Summary Return a borrowed book
// @Tags loans
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} LoanResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /loans/{id}/return [patch]
func (h *LoanHandler) ReturnLoan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	loan, err := h.svc.ReturnLoan(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newLoanResponse(*loan))
}

// DeleteLoan godoc
// @Summary Delete a returned loan
// @Tags loans
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /loans/{id} [delete]
func (h *LoanHandler) DeleteLoan(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteLoan(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
