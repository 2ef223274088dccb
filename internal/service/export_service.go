package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/thesisflow-api/internal/dto"
	"github.com/noah-isme/thesisflow-api/internal/models"
	appErrors "github.com/noah-isme/thesisflow-api/pkg/errors"
	"github.com/noah-isme/thesisflow-api/pkg/export"
	"github.com/noah-isme/thesisflow-api/pkg/storage"
)

type exportProposalStore interface {
	GetSetByID(ctx context.Context, id string) (*models.ProposalSet, error)
	ListSetsByGroup(ctx context.Context, groupID string) ([]models.ProposalSet, error)
	ListReviews(ctx context.Context, setID string) ([]models.ProposalReview, error)
}

type exportGroupStore interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
}

// ExportService renders proposal workflow data into downloadable files and
// hands out signed URLs for them.
type ExportService struct {
	proposals exportProposalStore
	groups    exportGroupStore
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	xlsx      *export.XLSXExporter
	logger    *zap.Logger
}

// NewExportService constructs the service.
func NewExportService(proposals exportProposalStore, groups exportGroupStore, store *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		proposals: proposals,
		groups:    groups,
		store:     store,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		xlsx:      export.NewXLSXExporter(),
		logger:    logger,
	}
}

// ExportGroupHistory renders the full proposal history of one group.
// Supported formats: csv, pdf, xlsx.
func (s *ExportService) ExportGroupHistory(ctx context.Context, groupID, format string, actor *models.JWTClaims) (*dto.ExportResponse, error) {
	if err := requireReviewerOrStaff(actor); err != nil {
		return nil, err
	}
	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found")
	}
	sets, err := s.proposals.ListSetsByGroup(ctx, groupID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load proposal history")
	}

	data := export.Dataset{
		Headers: []string{"cycle", "set_status", "entry_title", "entry_status", "agenda", "esg", "sdg", "locked"},
	}
	for _, set := range sets {
		for _, entry := range set.Entries {
			locked := "no"
			if set.LockedEntryID != nil && *set.LockedEntryID == entry.ID {
				locked = "yes"
			}
			data.Rows = append(data.Rows, map[string]string{
				"cycle":        fmt.Sprintf("%d", set.Cycle),
				"set_status":   string(set.Status),
				"entry_title":  entry.Title,
				"entry_status": string(entry.Status),
				"agenda":       deref(entry.Agenda),
				"esg":          deref(entry.ESG),
				"sdg":          deref(entry.SDG),
				"locked":       locked,
			})
		}
	}

	title := fmt.Sprintf("Proposal history, %s", group.Name)
	return s.render(data, format, fmt.Sprintf("group-%s-history", groupID), title)
}

// ExportReviewLog renders the append-only decision log of one set.
func (s *ExportService) ExportReviewLog(ctx context.Context, setID, format string, actor *models.JWTClaims) (*dto.ExportResponse, error) {
	if err := requireReviewerOrStaff(actor); err != nil {
		return nil, err
	}
	set, err := s.proposals.GetSetByID(ctx, setID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal set not found")
	}
	reviews, err := s.proposals.ListReviews(ctx, setID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review log")
	}

	titles := make(map[string]string, len(set.Entries))
	for _, entry := range set.Entries {
		titles[entry.ID] = entry.Title
	}
	sort.Slice(reviews, func(i, j int) bool { return reviews[i].ReviewedAt.Before(reviews[j].ReviewedAt) })

	data := export.Dataset{
		Headers: []string{"reviewed_at", "stage", "entry_title", "decision", "notes"},
	}
	for _, review := range reviews {
		data.Rows = append(data.Rows, map[string]string{
			"reviewed_at":  review.ReviewedAt.Format(time.RFC3339),
			"stage":       string(review.Stage),
			"entry_title": titles[review.ProposalID],
			"decision":    string(review.Decision),
			"notes":       deref(review.Notes),
		})
	}

	title := fmt.Sprintf("Review log, cycle %d", set.Cycle)
	return s.render(data, format, fmt.Sprintf("set-%s-reviews", setID), title)
}

func (s *ExportService) render(data export.Dataset, format, baseName, title string) (*dto.ExportResponse, error) {
	if s.store == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}

	var (
		payload []byte
		err     error
		ext     string
	)
	switch strings.ToLower(format) {
	case "csv", "":
		payload, err = s.csv.Render(data)
		ext = "csv"
	case "pdf":
		payload, err = s.pdf.Render(data, title)
		ext = "pdf"
	case "xlsx":
		payload, err = s.xlsx.Render(data, "Export")
		ext = "xlsx"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	exportID := uuid.NewString()
	filename := fmt.Sprintf("%s-%s.%s", baseName, exportID[:8], ext)
	if _, err := s.store.Save(filename, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(exportID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download URL")
	}

	return &dto.ExportResponse{
		ExportID:    exportID,
		Format:      ext,
		Filename:    filename,
		DownloadURL: fmt.Sprintf("/api/v1/exports/download?token=%s", token),
		ExpiresAt:   expiresAt,
	}, nil
}

// ResolveDownload validates a signed token and returns the stored filename.
func (s *ExportService) ResolveDownload(token string) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "exports are not configured")
	}
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return relPath, nil
}

// FilePath maps a stored filename to its absolute path for streaming.
func (s *ExportService) FilePath(filename string) string {
	return s.store.Path(filename)
}

// Cleanup removes exports older than the TTL. Wire it on a ticker.
func (s *ExportService) Cleanup(ttl time.Duration) {
	removed, err := s.store.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("export cleanup failed", zap.Error(err))
		return
	}
	if len(removed) > 0 {
		s.logger.Info("removed expired exports", zap.Int("count", len(removed)))
	}
}

func requireReviewerOrStaff(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin, models.RoleHead, models.RoleModerator, models.RoleAdviser:
		return nil
	default:
		return appErrors.ErrForbidden
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
