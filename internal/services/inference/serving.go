package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"PriceSight/internal/domain/models"
	domsvc "PriceSight/internal/domain/service"
	xhttp "PriceSight/pkg/http"
)

// ServingModel calls a TensorFlow-Serving compatible REST endpoint.
type ServingModel struct {
	baseURL string
	name    string
	window  int
	client  *xhttp.Client
}

// NewServingModel builds a remote model client. window is the input length the
// served model was exported with.
func NewServingModel(baseURL, name string, window int, timeout time.Duration) *ServingModel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ServingModel{
		baseURL: strings.TrimRight(baseURL, "/"),
		name:    name,
		window:  window,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type servingPredictReq struct {
	Instances [][][]float64 `json:"instances"`
}

type servingPredictResp struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

type servingStatusResp struct {
	ModelVersionStatus []struct {
		Version string `json:"version"`
		State   string `json:"state"`
	} `json:"model_version_status"`
}

// InputShape implements service.Model.
func (s *ServingModel) InputShape() (int, int) { return s.window, 1 }

// Predict implements service.Model.
func (s *ServingModel) Predict(ctx context.Context, input [][][]float64) ([][]float64, error) {
	var resp servingPredictResp
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    s.modelURL() + ":predict",
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: servingPredictReq{Instances: input},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			var body servingPredictResp
			if json.Unmarshal(se.Body, &body) == nil && body.Error != "" {
				return nil, models.NewError(models.KindInference,
					fmt.Sprintf("model server returned %d: %s", se.Code, body.Error), nil)
			}
		}
		return nil, models.NewError(models.KindInference, "post predict", err)
	}
	if resp.Error != "" {
		return nil, models.NewError(models.KindInference, "model server: "+resp.Error, nil)
	}
	return resp.Predictions, nil
}

// Ping checks that at least one version of the model is AVAILABLE.
func (s *ServingModel) Ping(ctx context.Context) error {
	var st servingStatusResp
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    s.modelURL(),
	}, &st)
	if err != nil {
		return fmt.Errorf("get model status: %w", err)
	}
	for _, v := range st.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("model %q has no AVAILABLE version", s.name)
}

func (s *ServingModel) modelURL() string {
	return s.baseURL + "/v1/models/" + url.PathEscape(s.name)
}

var _ domsvc.Model = (*ServingModel)(nil)
