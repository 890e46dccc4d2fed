package in

import (
	"context"

	"tabtrail/internal/modules/classifier/dto"
)

type Usecase interface {
	List(ctx context.Context) ([]dto.ClassifierInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error)
}
