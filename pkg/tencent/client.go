package tencent

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"
)

// TextTranslator 机器翻译接口，便于测试替换
type TextTranslator interface {
	TextTranslate(request *tmt.TextTranslateRequest) (*tmt.TextTranslateResponse, error)
}

// Client 腾讯云机器翻译。它不是真正的转写，而是把歌词翻译成目标语言，
// 作为“第二行”显示在原文下方
type Client struct {
	tmtClient TextTranslator
	target    string
}

// NewClient target 为空时翻译成中文
func NewClient(secretID, secretKey, region, target string) (*Client, error) {
	if secretID == "" || secretKey == "" {
		return nil, errors.New("tencent secret id or key is empty")
	}
	if region == "" {
		region = regions.Guangzhou
	}
	if target == "" {
		target = "zh"
	}

	credential := common.NewCredential(secretID, secretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10

	tmtClient, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		log.Error().Err(err).Msg("new tencent client error")
		return nil, err
	}

	return &Client{tmtClient: tmtClient, target: target}, nil
}

func (c *Client) Name() string {
	return "tencent-tmt"
}

// Transliterate 翻译单行歌词；源语言交给服务端自动识别
func (c *Client) Transliterate(ctx context.Context, line string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(line)
	request.Source = common.StringPtr("auto")
	request.Target = common.StringPtr(c.target)
	request.ProjectId = common.Int64Ptr(0)

	response, err := c.tmtClient.TextTranslate(request)
	if err != nil {
		return "", fmt.Errorf("tencent text translate: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return "", nil
	}
	return *response.Response.TargetText, nil
}
