package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hanash-dl/hanash/internal/history"
)

// RemoteService implements DownloadService against a running daemon.
type RemoteService struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

// NewRemoteService creates a client for the daemon at baseURL.
func NewRemoteService(baseURL, token string) *RemoteService {
	return &RemoteService{
		BaseURL: baseURL,
		Token:   token,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *RemoteService) doRequest(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, s.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	return resp, nil
}

func decodeInto[T any](resp *http.Response) (T, error) {
	var out T
	defer func() { _ = resp.Body.Close() }()
	err := json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

func (s *RemoteService) List() ([]ItemStatus, error) {
	resp, err := s.doRequest(http.MethodGet, "/list", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]ItemStatus](resp)
}

func (s *RemoteService) Get(id int) (*ItemStatus, error) {
	resp, err := s.doRequest(http.MethodGet, "/item?id="+strconv.Itoa(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[*ItemStatus](resp)
}

func (s *RemoteService) Add(req AddRequest) (*ItemStatus, error) {
	resp, err := s.doRequest(http.MethodPost, "/add", req)
	if err != nil {
		return nil, err
	}
	return decodeInto[*ItemStatus](resp)
}

func (s *RemoteService) idAction(path string, id int) error {
	resp, err := s.doRequest(http.MethodPost, path+"?id="+strconv.Itoa(id), nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (s *RemoteService) Start(id int) error  { return s.idAction("/start", id) }
func (s *RemoteService) Pause(id int) error  { return s.idAction("/pause", id) }
func (s *RemoteService) Resume(id int) error { return s.idAction("/resume", id) }
func (s *RemoteService) Cancel(id int) error { return s.idAction("/cancel", id) }

func (s *RemoteService) Delete(id int) error {
	resp, err := s.doRequest(http.MethodDelete, "/item?id="+strconv.Itoa(id), nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (s *RemoteService) StopAll() error {
	resp, err := s.doRequest(http.MethodPost, "/stop-all", nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (s *RemoteService) ResumeAll() error {
	resp, err := s.doRequest(http.MethodPost, "/resume-all", nil)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (s *RemoteService) History(limit int) ([]history.Entry, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	resp, err := s.doRequest(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]history.Entry](resp)
}

func (s *RemoteService) SetSpeedLimit(kbPerSec int64) error {
	body := map[string]int64{"speed_limit": kbPerSec}
	resp, err := s.doRequest(http.MethodPost, "/speed-limit", body)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}

func (s *RemoteService) Shutdown() error { return nil }
