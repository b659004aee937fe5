package handlers

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// proxiedImage is one cached candidate image.
type proxiedImage struct {
	data        []byte
	contentType string
}

const maxProxiedImageSize = 20 * 1024 * 1024

// HandleImageProxy fetches a candidate image on behalf of the browser so
// source sites never see the operator directly. Responses are cached by URL.
func (h *Handler) HandleImageProxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.metrics.IncProxyRequest("error")
		h.writeError(w, "Missing url parameter", http.StatusBadRequest)
		return
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		h.metrics.IncProxyRequest("error")
		h.writeError(w, "url must be an absolute http(s) URL", http.StatusBadRequest)
		return
	}

	if cached, ok := h.proxyCache.Get(rawURL); ok {
		h.metrics.IncProxyRequest("hit")
		serveImage(w, cached)
		return
	}

	img, err := h.fetchImage(r, rawURL)
	if err != nil {
		h.metrics.IncProxyRequest("error")
		h.writeError(w, "Failed to fetch image: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.proxyCache.Add(rawURL, img)
	h.metrics.IncProxyRequest("miss")
	serveImage(w, img)
}

func (h *Handler) fetchImage(r *http.Request, rawURL string) (proxiedImage, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		return proxiedImage{}, err
	}
	resp, err := h.proxyClient.Do(req)
	if err != nil {
		return proxiedImage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return proxiedImage{}, fmt.Errorf("upstream returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProxiedImageSize))
	if err != nil {
		return proxiedImage{}, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return proxiedImage{data: data, contentType: contentType}, nil
}

func serveImage(w http.ResponseWriter, img proxiedImage) {
	w.Header().Set("Content-Type", img.contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(img.data); err != nil {
		return
	}
}
