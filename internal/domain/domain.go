package domain

import (
	"github.com/aquaforge/pondops-backend/internal/domain/auth"
	"github.com/aquaforge/pondops-backend/internal/domain/cycle"
	"github.com/aquaforge/pondops-backend/internal/domain/harvest"
	"github.com/aquaforge/pondops-backend/internal/domain/ingestion"
	"github.com/aquaforge/pondops-backend/internal/domain/projection"
	"github.com/aquaforge/pondops-backend/internal/domain/sampling"
	"github.com/aquaforge/pondops-backend/internal/domain/tenancy"
	"github.com/aquaforge/pondops-backend/internal/domain/user"
)

// Identity + auth
type User = user.User
type UserToken = auth.UserToken

// Tenancy
type Farm = tenancy.Farm
type Pond = tenancy.Pond

// Cycle + seeding
type Cycle = cycle.Cycle
type SeedingPlan = cycle.SeedingPlan

// Projection timeline
type ProjectionHeader = projection.Header
type ProjectionLine = projection.Line

// Sampling
type BiometrySample = sampling.BiometrySample
type SurvivalChange = sampling.SurvivalChange

// Harvest
type HarvestWave = harvest.Wave
type HarvestWaveLine = harvest.WaveLine

// Ingestion
type ProjectionUpload = ingestion.ProjectionUpload

const (
	RoleAdmin    = user.RoleAdmin
	RoleManager  = user.RoleManager
	RoleOperator = user.RoleOperator

	CycleOpen   = cycle.StatusOpen
	CycleClosed = cycle.StatusClosed

	SeedingPlanned   = cycle.SeedingPlanned
	SeedingConfirmed = cycle.SeedingConfirmed

	ProjectionDraft     = projection.StatusDraft
	ProjectionPublished = projection.StatusPublished
	ProjectionInReview  = projection.StatusInReview
	ProjectionCancelled = projection.StatusCancelled

	SourceFromPlans  = projection.SourceFromPlans
	SourceFromFile   = projection.SourceFromFile
	SourceReforecast = projection.SourceReforecast

	HarvestPartial = harvest.KindPartial
	HarvestFinal   = harvest.KindFinal

	WavePlanned    = harvest.StatusPlanned
	WaveInProgress = harvest.StatusInProgress
	WaveDone       = harvest.StatusDone
	WaveCancelled  = harvest.StatusCancelled

	UploadPending    = ingestion.UploadPending
	UploadProcessing = ingestion.UploadProcessing
	UploadDone       = ingestion.UploadDone
	UploadFailed     = ingestion.UploadFailed
)
