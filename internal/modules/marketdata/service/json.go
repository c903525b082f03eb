package service

import "github.com/bytedance/sonic"

func unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
