package in

import (
	"context"
	"fmt"
	"strings"

	"tabtrail/internal/modules/classifier/dto"
	classifierin "tabtrail/internal/modules/classifier/port/in"
	apperrors "tabtrail/internal/platform/errors"
)

type CLIHandler struct {
	usecase classifierin.Usecase
}

func NewCLIHandler(usecase classifierin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.ClassifierInfo, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return h.usecase.Doctor(ctx)
}

func (h CLIHandler) Lookup(ctx context.Context, rawURL, title string) (dto.LookupOutput, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return dto.LookupOutput{}, fmt.Errorf("url is required: %w", apperrors.ErrInvalidInput)
	}
	return h.usecase.Lookup(ctx, dto.LookupInput{URL: rawURL, Title: title})
}
