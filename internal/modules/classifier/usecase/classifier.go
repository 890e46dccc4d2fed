package usecase

import (
	"context"

	"tabtrail/internal/modules/classifier/dto"
	classifierin "tabtrail/internal/modules/classifier/port/in"
	"tabtrail/internal/modules/classifier/service"
)

type Interactor struct {
	svc *service.ClassifierService
}

func NewInteractor(svc *service.ClassifierService) classifierin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) List(ctx context.Context) ([]dto.ClassifierInfo, error) {
	return i.svc.List(ctx)
}

func (i *Interactor) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	return i.svc.Doctor(ctx)
}

func (i *Interactor) Lookup(ctx context.Context, input dto.LookupInput) (dto.LookupOutput, error) {
	return i.svc.Lookup(ctx, input)
}
