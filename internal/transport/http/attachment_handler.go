package httptransport

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"scribemarket/backend/internal/domain"
)

// uploadAttachment 接收 multipart 文件并保存到附件存储。
func (h *Handler) uploadAttachment(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}
	defer file.Close()

	handle, err := h.attachments.Save(file, fileHeader.Filename)
	if err != nil {
		WriteError(c, err)
		return
	}
	Created(c, handle)
}

// downloadAttachment 下载附件内容。
func (h *Handler) downloadAttachment(c *gin.Context) {
	if _, ok := h.currentUser(c); !ok {
		return
	}

	id := c.Param("id")
	reader, size, err := h.attachments.Open(id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			NotFound(c, MsgAttachmentNotFound)
			return
		}
		WriteError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id))
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.DataFromReader(200, size, "application/octet-stream", reader, nil)
}
