package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tair/parts-exchange/internal/listing/domain"
	"github.com/tair/parts-exchange/internal/listing/usecase/command"
)

const (
	maxJSONBody      = 1 << 20
	maxMultipartForm = 10 << 20
)

// priceField accepts an integer, a numeric string, "" or null. The last two
// mean "no price": left empty on create, cleared on update.
type priceField struct {
	present bool
	value   *int64
}

func (p *priceField) UnmarshalJSON(b []byte) error {
	p.present = true
	s := strings.TrimSpace(string(b))
	if s == "null" {
		p.value = nil
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	return p.parse(s)
}

func (p *priceField) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		p.value = nil
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return domain.InvalidInput("price must be an integer")
	}
	p.value = &v
	return nil
}

func (p priceField) ptr() *int64 {
	if p.value == nil {
		return nil
	}
	v := *p.value
	return &v
}

// cleared reports a supplied but empty price
func (p priceField) cleared() bool {
	return p.present && p.value == nil
}

// listingRequest is the body of create and update calls. Nil fields were not
// supplied.
type listingRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Price        priceField `json:"price"`
	Location     *string    `json:"location"`
	ImageURL     *string    `json:"image_url"`
	ContactEmail *string    `json:"contact_email"`
	ContactPhone *string    `json:"contact_phone"`
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

// decodeListingRequest reads a JSON body or an HTML form into a listingRequest
func decodeListingRequest(w http.ResponseWriter, r *http.Request) (listingRequest, error) {
	var req listingRequest

	if isJSON(r) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return req, nil
			}
			if errors.Is(err, domain.ErrInvalidInput) {
				return req, err
			}
			return req, domain.InvalidInput("invalid request body: %v", err)
		}
		return req, nil
	}

	var err error
	if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		err = r.ParseMultipartForm(maxMultipartForm)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return req, domain.InvalidInput("invalid form body: %v", err)
	}

	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}

	req.Title = field("title")
	req.Description = field("description")
	req.Location = field("location")
	req.ImageURL = field("image_url")
	req.ContactEmail = field("contact_email")
	req.ContactPhone = field("contact_phone")
	if raw, ok := r.PostForm["price"]; ok {
		req.Price.present = true
		if err := req.Price.parse(raw[0]); err != nil {
			return req, err
		}
	}
	return req, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (req listingRequest) submitCommand() command.SubmitListingCommand {
	return command.SubmitListingCommand{
		Title:        deref(req.Title),
		Description:  deref(req.Description),
		Price:        req.Price.ptr(),
		Location:     deref(req.Location),
		ImageURL:     deref(req.ImageURL),
		ContactEmail: deref(req.ContactEmail),
		ContactPhone: deref(req.ContactPhone),
	}
}

func (req listingRequest) patch() domain.ListingPatch {
	return domain.ListingPatch{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price.ptr(),
		ClearPrice:   req.Price.cleared(),
		Location:     req.Location,
		ImageURL:     req.ImageURL,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
}
