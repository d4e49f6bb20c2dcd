// Package privileged 调用外部托管的特权接口: 认证审核和订阅计数重置
package privileged

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/zly-app/zapp/logger"
	"go.uber.org/zap"

	"github.com/zlyuancn/engage/conf"
	"github.com/zlyuancn/engage/model"
)

// 未配置特权接口地址
var ErrNotConfigured = errors.New("privileged endpoint not configured")

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// 根据配置创建, 未配置地址时返回nil
func NewClientFromConf() *Client {
	if conf.Conf.PrivilegedBaseURL == "" {
		return nil
	}
	return NewClient(conf.Conf.PrivilegedBaseURL, time.Duration(conf.Conf.PrivilegedTimeoutSec)*time.Second)
}

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type verificationReq struct {
	UserID  string `json:"userId"`
	Approve bool   `json:"approve"`
	Note    string `json:"note,omitempty"`
}

// 审核用户认证
func (c *Client) ReviewVerification(ctx context.Context, userID string, approve bool, note string) error {
	if userID == "" {
		return errors.New("userID is empty")
	}
	return c.post(ctx, conf.Conf.VerificationPath, verificationReq{UserID: userID, Approve: approve, Note: note})
}

type resetReq struct {
	Level model.SubscriptionLevel `json:"level"`
}

// 触发订阅计数重置
func (c *Client) TriggerSubscriptionReset(ctx context.Context, level model.SubscriptionLevel) error {
	if !level.Valid() {
		return fmt.Errorf("invalid level %d", level)
	}
	return c.post(ctx, conf.Conf.SubscriptionResetPath, resetReq{Level: level})
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return err
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Error(ctx, "privileged call http.Do err", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var ret response
	if err = sonic.Unmarshal(data, &ret); err != nil {
		logger.Error(ctx, "privileged call Unmarshal err",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(data)),
			zap.Error(err),
		)
		return fmt.Errorf("privileged %s: status %d", path, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || !ret.Success {
		msg := ret.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		logger.Warn(ctx, "privileged call failed", zap.String("url", url), zap.Int("status", resp.StatusCode), zap.String("error", msg))
		return fmt.Errorf("privileged %s: %s", path, msg)
	}
	return nil
}
