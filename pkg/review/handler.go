package review

import (
	"github.com/tokmz/reviewhub"
)

// IDRequest 路径参数
type IDRequest struct {
	ID uint `uri:"id"`
}

// UpdateRequest PATCH 请求
type UpdateRequest struct {
	ID uint `uri:"id" json:"-"`
	UpdateInput
}

// DeleteResult 删除结果
type DeleteResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Handler 评测 HTTP 接口
type Handler struct {
	svc *Service
}

// NewHandler 创建接口
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register 注册路由，写接口挂载 admin 中间件
//
//	GET    /reviews/
//	GET    /reviews/:id
//	POST   /reviews/      (admin)
//	PATCH  /reviews/:id   (admin)
//	DELETE /reviews/:id   (admin)
func (h *Handler) Register(rg *reviewhub.RouterGroup, admin reviewhub.HandlerFunc) {
	rg.GET("/", h.list)
	reviewhub.Handle[IDRequest, Review](rg.GET, "/:id", h.get)
	reviewhub.Handle[CreateInput, Review](rg.POST, "/", h.create, admin)
	reviewhub.Handle[UpdateRequest, Review](rg.PATCH, "/:id", h.update, admin)
	reviewhub.Handle[IDRequest, DeleteResult](rg.DELETE, "/:id", h.delete, admin)
}

func (h *Handler) list(c *reviewhub.Context) {
	var q ListQuery
	if err := c.BindQuery(&q); err != nil {
		return
	}
	reviews, total, err := h.svc.List(c.RequestContext(), q)
	if err != nil {
		c.RespondError(err)
		return
	}
	c.Page(reviews, uint64(total))
}

func (h *Handler) get(c *reviewhub.Context, req *IDRequest) (*Review, error) {
	return h.svc.Get(c.RequestContext(), req.ID)
}

func (h *Handler) create(c *reviewhub.Context, req *CreateInput) (*Review, error) {
	return h.svc.Create(c.RequestContext(), *req)
}

func (h *Handler) update(c *reviewhub.Context, req *UpdateRequest) (*Review, error) {
	return h.svc.Update(c.RequestContext(), req.ID, req.UpdateInput)
}

func (h *Handler) delete(c *reviewhub.Context, req *IDRequest) (*DeleteResult, error) {
	if err := h.svc.Delete(c.RequestContext(), req.ID); err != nil {
		return nil, err
	}
	return &DeleteResult{OK: true, Message: "review deleted"}, nil
}
