package usecase_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	classifierin "tabtrail/internal/modules/classifier/adapter/in"
	classifierout "tabtrail/internal/modules/classifier/adapter/out"
	"tabtrail/internal/modules/classifier/service"
	"tabtrail/internal/modules/classifier/usecase"
	apperrors "tabtrail/internal/platform/errors"
)

func TestCLIHandlerWithoutManifests(t *testing.T) {
	t.Parallel()
	store := classifierout.NewFileManifestStore(filepath.Join(t.TempDir(), "classifiers.json"))
	svc := service.NewClassifierService(store, classifierout.NewGRPCHost(nil), nil, zerolog.Nop(), service.Config{})
	require.NoError(t, svc.Start(context.Background()))
	h := classifierin.NewCLIHandler(usecase.NewInteractor(svc))

	infos, err := h.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, infos)

	results, err := h.Doctor(context.Background())
	require.NoError(t, err)
	require.Empty(t, results)

	out, err := h.Lookup(context.Background(), " https://news.ycombinator.com/item?id=1 ", "")
	require.NoError(t, err)
	require.Equal(t, "News", out.Category)
	require.Equal(t, service.SourceRules, out.Source)

	_, err = h.Lookup(context.Background(), "  ", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)
	require.NoError(t, svc.Close())
}
