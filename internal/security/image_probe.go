package security

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// ImageProber は画像URLが実際に画像を返すかを確認する。
type ImageProber struct {
	client *http.Client
}

// NewImageProber はImageProberを生成する。
// 本番ではSSRFGuard.NewSafeClientで生成したクライアントを渡す。
func NewImageProber(client *http.Client) *ImageProber {
	return &ImageProber{client: client}
}

// Probe は画像URLにHEADリクエストを送り、2xxかつimage/*のContent-Typeであることを確認する。
func (p *ImageProber) Probe(ctx context.Context, imageURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return fmt.Errorf("invalid image URL: %w", err)
	}
	req.Header.Set("User-Agent", "magicalmoments-image-probe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("image URL is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("image URL has content type %q", contentType)
	}
	return nil
}
