package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"vfi-client/internal/domain"
)

var (
	// ErrUnknownKind is returned for job kinds without an endpoint.
	ErrUnknownKind = errors.New("unknown job kind")
	// ErrInvalidParams is returned when handshake fields do not fit the job kind.
	ErrInvalidParams = errors.New("invalid job params")
)

var endpoints = map[domain.JobKind]string{
	domain.JobKindExtractFrames:     "/ws/extract-frames",
	domain.JobKindGenerateMidFrames: "/ws/vfi-service-index",
	domain.JobKindEaseMotion:        "/ws/vfi-service-lvl3",
}

// EndpointURL builds the socket URL for kind on host.
func EndpointURL(host string, secure bool, kind domain.JobKind) (string, error) {
	path, ok := endpoints[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("server host is empty")
	}

	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	u := url.URL{Scheme: scheme, Host: host, Path: path}
	return u.String(), nil
}

type extractHandshake struct {
	UserName string `json:"user_name"`
}

type generateHandshake struct {
	UserName string `json:"user_name"`
	ImgPath  string `json:"img_path"`
	Index    []int  `json:"index"`
	Number   int    `json:"number"`
	Extv     string `json:"extv"`
}

type easeHandshake struct {
	UserName   string `json:"user_name"`
	ImgPath    string `json:"img_path"`
	NumberList []int  `json:"number_list"`
	PixFmt     string `json:"pixfmt"`
	Extv       string `json:"extv"`
}

// Handshake encodes the JSON control message that opens a job.
func Handshake(req domain.JobRequest) ([]byte, error) {
	var body any
	switch req.Kind {
	case domain.JobKindExtractFrames:
		body = extractHandshake{UserName: req.User}
	case domain.JobKindGenerateMidFrames:
		p := req.Params
		if err := validateGenerate(p); err != nil {
			return nil, err
		}
		body = generateHandshake{
			UserName: req.User,
			ImgPath:  p.ImagePath,
			Index:    p.Index,
			Number:   p.Number,
			Extv:     p.Extv,
		}
	case domain.JobKindEaseMotion:
		p := req.Params
		if err := validateEase(p); err != nil {
			return nil, err
		}
		body = easeHandshake{
			UserName:   req.User,
			ImgPath:    p.ImagePath,
			NumberList: p.NumberList,
			PixFmt:     p.PixFmt,
			Extv:       p.Extv,
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode handshake: %w", err)
	}
	return data, nil
}

func validateGenerate(p domain.JobParams) error {
	if strings.TrimSpace(p.ImagePath) == "" {
		return fmt.Errorf("%w: img_path is required", ErrInvalidParams)
	}
	if len(p.Index) != 2 {
		return fmt.Errorf("%w: index must be a pair, got %d values", ErrInvalidParams, len(p.Index))
	}
	if p.Index[0] < 0 || p.Index[1] <= p.Index[0] {
		return fmt.Errorf("%w: index pair %v is not ascending", ErrInvalidParams, p.Index)
	}
	if p.Number < 0 {
		return fmt.Errorf("%w: number must not be negative", ErrInvalidParams)
	}
	return nil
}

func validateEase(p domain.JobParams) error {
	if strings.TrimSpace(p.ImagePath) == "" {
		return fmt.Errorf("%w: img_path is required", ErrInvalidParams)
	}
	if len(p.NumberList) == 0 {
		return fmt.Errorf("%w: number_list is empty", ErrInvalidParams)
	}
	total := 0
	for i, n := range p.NumberList {
		if n < 0 {
			return fmt.Errorf("%w: number_list[%d] is negative", ErrInvalidParams, i)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("%w: number_list sums to zero", ErrInvalidParams)
	}
	return nil
}
