package registration

import (
	"errors"

	"github.com/onehud/registrar/internal/serialport"
)

// User-facing texts, in Vietnamese like the rest of the registration page.
const (
	MsgProcessing  = "⏳ Đang xác nhận thông tin đăng ký..."
	MsgSuccess     = "✅ Đăng ký thành công! Chúng tôi sẽ kiểm tra thanh toán và gửi link firmware cho bạn qua email trong thời gian sớm nhất."
	MsgInvalid     = "❌ Vui lòng nhập email hợp lệ"
	MsgErrorPrefix = "❌ Lỗi: "

	ReasonUnavailable   = "Máy tính này không hỗ trợ kết nối cổng serial hoặc chưa cài đặt esptool."
	ReasonConnectDevice = "Vui lòng kết nối thiết bị vào máy tính và thử lại"
	ReasonDelivery      = "Không thể kết nối đến server"
	ReasonInvalidEmail  = "Email không hợp lệ"
)

// deviceReason picks the text shown for a failed device read.
func deviceReason(err error) string {
	switch {
	case err == nil:
		return ReasonConnectDevice
	case errors.Is(err, serialport.ErrNoDevice), errors.Is(err, serialport.ErrNoSelection):
		return ReasonConnectDevice
	case errors.Is(err, serialport.ErrPortBusy):
		return "Cổng serial đang được chương trình khác sử dụng"
	case errors.Is(err, serialport.ErrPermission):
		return "Không có quyền truy cập cổng serial"
	default:
		return err.Error()
	}
}

// failureMessage renders the status line for a failed run.
func failureMessage(e *Error) string {
	if e.Kind == InvalidEmail {
		return MsgInvalid
	}
	return MsgErrorPrefix + e.Reason
}
