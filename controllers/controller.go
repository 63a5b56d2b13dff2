package controller

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"taskhub/apperr"
	"taskhub/store"
)

// PageSize is the number of records per page of every listing.
const PageSize = 10

// MaxPage bounds the page query so offsets stay within a 32-bit range.
const MaxPage = math.MaxInt32 / PageSize

const dateLayout = "2006-01-02"

func pageFromQuery(c *fiber.Ctx) store.Page {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	} else if page > MaxPage {
		page = MaxPage
	}
	return store.Page{Number: page, Size: PageSize}
}

// parseBody decodes the request body into req. A malformed body is a
// validation failure of the body itself.
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return apperr.New(apperr.ValidationFailed, "invalid request body",
			apperr.WithField("body", "body must be valid JSON"), apperr.WithCause(err))
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailed, "validation failed",
			apperr.WithField("due_date", "due_date must be a date formatted as "+dateLayout))
	}
	return &t, nil
}

// references collects existence checks of the ids a request refers to and
// reports every missing one as a field error.
type references struct {
	fields map[string]string
	err    error
}

func (r *references) check(field string, err error) {
	if err == nil || r.err != nil {
		return
	}
	if !apperr.Is(err, apperr.NotFound) {
		r.err = err
		return
	}
	if r.fields == nil {
		r.fields = make(map[string]string)
	}
	r.fields[field] = "the selected " + field + " is invalid"
}

func (r *references) Err() error {
	if r.err != nil {
		return r.err
	}
	if len(r.fields) > 0 {
		return apperr.Validation(r.fields)
	}
	return nil
}

func invalidQuery(field, msg string) error {
	return apperr.New(apperr.ValidationFailed, "invalid query", apperr.WithField(field, msg))
}
