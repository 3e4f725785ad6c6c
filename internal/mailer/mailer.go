package mailer

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"strconv"

	"github.com/wneessen/go-mail"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

type kind struct {
	file    string
	subject string
}

var kinds = map[string]kind{
	domain.MailTypeParticipationApproved: {"participation_approved.html", "志愿者管理系统 - 报名已通过"},
	domain.MailTypeParticipationRejected: {"participation_rejected.html", "志愿者管理系统 - 报名未通过"},
	domain.MailTypeParticipationExpired:  {"participation_expired.html", "志愿者管理系统 - 报名已过期"},
	domain.MailTypeParticipationRemoved:  {"participation_removed.html", "志愿者管理系统 - 已被移出班次"},
	domain.MailTypeParticipationReviewed: {"participation_reviewed.html", "志愿者管理系统 - 服务评价"},
}

var funcs = template.FuncMap{
	"percent": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return strconv.FormatFloat(*v, 'f', -1, 64) + "%"
	},
}

// envelope 与 domain.MailMessage 对应，Data 直接解码为报名通知的模板数据
type envelope struct {
	Type string                       `json:"type"`
	To   string                       `json:"to"`
	Data domain.ParticipationMailData `json:"data"`
}

type Renderer struct {
	from      string
	templates map[string]*template.Template
}

// New 预先解析所有模板，任一模板出错都会返回错误
func New(from string) (*Renderer, error) {
	r := &Renderer{
		from:      from,
		templates: make(map[string]*template.Template, len(kinds)),
	}
	for mailType, k := range kinds {
		tmpl, err := template.New(k.file).Funcs(funcs).ParseFS(templateFS, "templates/"+k.file)
		if err != nil {
			return nil, fmt.Errorf("无法解析邮件模板 %s: %w", k.file, err)
		}
		r.templates[mailType] = tmpl
	}
	return r, nil
}

// ErrUnsupportedType 表示消息无法被任何模板处理，重试也没有意义
type ErrUnsupportedType struct {
	Type string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("不支持的邮件类型 %q", e.Type)
}

// Render 把队列中的消息体转换为可以直接发送的邮件
func (r *Renderer) Render(body []byte) (*mail.Msg, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("邮件信息反序列化失败: %w", err)
	}

	tmpl, ok := r.templates[env.Type]
	if !ok {
		return nil, &ErrUnsupportedType{Type: env.Type}
	}

	m := mail.NewMsg()
	if err := m.From(r.from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := m.To(env.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}
	if err := m.SetBodyHTMLTemplate(tmpl, env.Data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	m.Subject(kinds[env.Type].subject)

	return m, nil
}
