package refindex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cardscan/internal/imagehash"
	"cardscan/internal/logging"
	"cardscan/internal/services"
)

// ManifestEntry describes one reference card to ingest. LocalPath is tried
// first, RemoteURL second.
type ManifestEntry struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	LocalPath string            `json:"local_path"`
	RemoteURL string            `json:"remote_url"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// BuildResult summarizes a batch ingest.
type BuildResult struct {
	Built   int
	Skipped int
}

// Builder ingests manifest entries into reference cards. Decode and fetch
// failures are skipped and counted, never fatal to the batch.
type Builder struct {
	client *http.Client
	logger *slog.Logger
}

// NewBuilder constructs a Builder. A nil client gets a bounded-timeout
// default.
func NewBuilder(client *http.Client, logger *slog.Logger) *Builder {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Builder{
		client: client,
		logger: logging.NewComponentLogger(logger, "refindex"),
	}
}

// LoadManifest reads a JSON array of manifest entries.
func LoadManifest(path string) ([]ManifestEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "index", "load manifest", "", err)
	}
	var entries []ManifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, services.Wrap(services.ErrValidation, "index", "parse manifest", "", err)
	}
	return entries, nil
}

// Build fingerprints every manifest entry and appends the successes to the
// index.
func (b *Builder) Build(ctx context.Context, idx *Index, entries []ManifestEntry) (BuildResult, error) {
	var result BuildResult
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		card, err := b.buildOne(ctx, entry)
		if err != nil {
			result.Skipped++
			b.logger.Warn("skipping reference card",
				logging.String("card_id", entry.ID),
				logging.Error(err))
			continue
		}
		idx.Add(card)
		result.Built++
	}
	return result, nil
}

func (b *Builder) buildOne(ctx context.Context, entry ManifestEntry) (ReferenceCard, error) {
	data, previewRef, err := b.loadImage(ctx, entry)
	if err != nil {
		return ReferenceCard{}, err
	}
	img, err := imagehash.DecodeBytes(data)
	if err != nil {
		return ReferenceCard{}, err
	}
	return ReferenceCard{
		ID:         entry.ID,
		Name:       entry.Name,
		Triple:     imagehash.FromImage(img),
		PreviewRef: previewRef,
		Metadata:   entry.Metadata,
	}, nil
}

func (b *Builder) loadImage(ctx context.Context, entry ManifestEntry) ([]byte, string, error) {
	if entry.LocalPath != "" {
		data, err := os.ReadFile(entry.LocalPath)
		if err == nil {
			return data, entry.LocalPath, nil
		}
		if entry.RemoteURL == "" {
			return nil, "", err
		}
	}
	if entry.RemoteURL == "" {
		return nil, "", fmt.Errorf("manifest entry %q has no image reference", entry.ID)
	}
	data, err := b.fetch(ctx, entry.RemoteURL)
	if err != nil {
		return nil, "", err
	}
	return data, entry.RemoteURL, nil
}

func (b *Builder) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "index", "fetch reference image", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch reference image %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
