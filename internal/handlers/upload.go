package handlers

import (
	"errors"
	"io"

	"github.com/ahmetcoskunkizilkaya/healthcat-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// formUpload opens an optional multipart file. The caller closes it.
func formUpload(c *fiber.Ctx, field string) (*services.Upload, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, fasthttp.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &services.ValidationError{Field: field, Message: "could not read upload"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Body:        f,
	}, nil
}

func closeUpload(u *services.Upload) {
	if c, ok := u.Body.(io.Closer); ok {
		_ = c.Close()
	}
}
