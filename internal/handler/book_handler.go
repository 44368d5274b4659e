package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"library/internal/model"
	"library/internal/repository"
	"library/internal/service"
)

// BookHandler serves the catalogue endpoints.
type BookHandler struct {
	svc service.BookService
}

// NewBookHandler creates a new book handler.
func NewBookHandler(svc service.BookService) *BookHandler {
	return &BookHandler{svc: svc}
}

// CreateBookRequest is the body of POST and PUT /books.
type CreateBookRequest struct {
	Title         string `json:"title" validate:"required"`
	AuthorName    string `json:"author_name" validate:"required"`
	GenreName     string `json:"genre_name" validate:"required"`
	PublishedYear int    `json:"published_year" validate:"required"`
	Stock         int    `json:"stock" validate:"gte=0"`
}

// UpdateBookRequest is the body of PATCH /books/{id}. Omitted fields are kept.
type UpdateBookRequest struct {
	Title         *string `json:"title"`
	AuthorName    *string `json:"author_name"`
	GenreName     *string `json:"genre_name"`
	PublishedYear *int    `json:"published_year"`
	Stock         *int    `json:"stock" validate:"omitempty,gte=0"`
}

// ListBooks godoc
// @Summary List books
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param title query string false "Title contains"
// @Param author query string false "Author contains"
// @Param genre query string false "Genre contains"
// @Param year_min query int false "Published in or after"
// @Param year_max query int false "Published in or before"
// @Param year query int false "Published in"
// @Param stock query int false "Exact stock"
// @Param available query bool false "Has stock"
// @Success 200 {array} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Router /books [get]
func (h *BookHandler) ListBooks(c echo.Context) error {
	filter, err := parseBookFilter(c)
	if err != nil {
		return err
	}
	books, err := h.svc.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newBookResponses(books))
}

// GetBook godoc
// @Summary Get book by id
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	book, err := h.svc.GetBook(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newBookResponse(*book))
}

// CreateBook godoc
// @Summary Create book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBookRequest true "Book"
// @Success 201 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /books [post]
func (h *BookHandler) CreateBook(c echo.Context) error {
	var req CreateBookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	book, err := h.svc.CreateBook(c.Request().Context(), service.CreateBookInput{
		Title:         req.Title,
		AuthorName:    req.AuthorName,
		GenreName:     req.GenreName,
		PublishedYear: req.PublishedYear,
		Stock:         req.Stock,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newBookResponse(*book))
}

// ReplaceBook godoc
// @Summary Replace book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body CreateBookRequest true "Book"
// @Success 200 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [put]
func (h *BookHandler) ReplaceBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req CreateBookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.update(c, id, service.UpdateBookInput{
		Title:         &req.Title,
		AuthorName:    &req.AuthorName,
		GenreName:     &req.GenreName,
		PublishedYear: &req.PublishedYear,
		Stock:         &req.Stock,
	})
}

// UpdateBook godoc
// @Summary Partially update book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body UpdateBookRequest true "Changed fields"
// @Success 200 {object} BookResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /books/{id} [patch]
func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateBookRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.update(c, id, service.UpdateBookInput{
		Title:         req.Title,
		AuthorName:    req.AuthorName,
		GenreName:     req.GenreName,
		PublishedYear: req.PublishedYear,
		Stock:         req.Stock,
	})
}

func (h *BookHandler) update(c echo.Context, id model.ID, in service.UpdateBookInput) error {
	book, err := h.svc.UpdateBook(c.Request().Context(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newBookResponse(*book))
}

// DeleteBook godoc
// @Summary Delete book
// @Tags books
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBook(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func parseBookFilter(c echo.Context) (repository.BookFilter, error) {
	filter := repository.BookFilter{
		Title:  c.QueryParam("title"),
		Author: c.QueryParam("author"),
		Genre:  c.QueryParam("genre"),
	}
	ints := []struct {
		name string
		dst  **int
	}{
		{"year_min", &filter.YearMin},
		{"year_max", &filter.YearMax},
		{"year", &filter.Year},
		{"stock", &filter.Stock},
	}
	for _, p := range ints {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return repository.BookFilter{}, badRequest("invalid " + p.name)
		}
		*p.dst = &v
	}
	if raw := c.QueryParam("available"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return repository.BookFilter{}, badRequest("invalid available")
		}
		filter.Available = &v
	}
	return filter, nil
}
