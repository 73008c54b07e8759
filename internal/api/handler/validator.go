package handler

import (
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/HUYVESEA0/Lab-Manager-sub000/internal/lifecycle"
)

// RegisterValidators 向 gin 绑定引擎注册业务校验标签
//
//	vcode: 6 位大写字母或数字的签到码
//	role:  user / admin / system_admin
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("绑定引擎不是 validator.Validate")
	}

	if err := v.RegisterValidation("vcode", func(fl validator.FieldLevel) bool {
		return lifecycle.ValidVerificationCode(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("注册 vcode 校验失败: %w", err)
	}

	if err := v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return lifecycle.ValidRole(fl.Field().String())
	}); err != nil {
		return fmt.Errorf("注册 role 校验失败: %w", err)
	}

	return nil
}
