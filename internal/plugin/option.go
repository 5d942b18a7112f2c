package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/checkout-next/internal/constants"
)

var (
	ErrConfigInvalid  = errors.New("plugin config invalid")
	ErrOptionRequired = errors.New("plugin option required")
	ErrOptionType     = errors.New("plugin option type invalid")
	ErrOptionUnknown  = errors.New("plugin option unknown")
)

// OptionKind 配置项类型
type OptionKind string

const (
	KindString  OptionKind = constants.PluginOptionTypeString
	KindBoolean OptionKind = constants.PluginOptionTypeBoolean
	KindSecret  OptionKind = constants.PluginOptionTypeSecret
)

// Secret 敏感配置值，格式化输出时脱敏
type Secret string

// String 脱敏输出
func (s Secret) String() string {
	if len(s) == 0 {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + string(s[len(s)-4:])
}

// Reveal 返回明文
func (s Secret) Reveal() string {
	return string(s)
}

// Option 强类型配置项：Kind 决定哪个值字段有效
type Option struct {
	Name string
	Kind OptionKind

	text    string
	boolean bool
	secret  Secret
}

// StringOption 字符串配置项
func StringOption(name, value string) Option {
	return Option{Name: name, Kind: KindString, text: value}
}

// BooleanOption 布尔配置项
func BooleanOption(name string, value bool) Option {
	return Option{Name: name, Kind: KindBoolean, boolean: value}
}

// SecretOption 敏感配置项
func SecretOption(name string, value Secret) Option {
	return Option{Name: name, Kind: KindSecret, secret: value}
}

// AsString 读取字符串值
func (o Option) AsString() (string, bool) {
	return o.text, o.Kind == KindString
}

// AsBool 读取布尔值
func (o Option) AsBool() (bool, bool) {
	return o.boolean, o.Kind == KindBoolean
}

// AsSecret 读取敏感值
func (o Option) AsSecret() (Secret, bool) {
	return o.secret, o.Kind == KindSecret
}

// String 用于日志输出，敏感值脱敏
func (o Option) String() string {
	switch o.Kind {
	case KindString:
		return o.Name + "=" + o.text
	case KindBoolean:
		return o.Name + "=" + strconv.FormatBool(o.boolean)
	case KindSecret:
		return o.Name + "=" + o.secret.String()
	default:
		return o.Name + "=?"
	}
}

// OptionSpec 插件声明的配置项
type OptionSpec struct {
	Name     string
	Kind     OptionKind
	Required bool
	Default  interface{}
	Validate func(Option) error
}

// Options 已校验的配置集合
type Options map[string]Option

// String 读取字符串配置，不存在或类型不符返回空串
func (o Options) String(name string) string {
	value, _ := o[name].AsString()
	return value
}

// Bool 读取布尔配置
func (o Options) Bool(name string) bool {
	value, _ := o[name].AsBool()
	return value
}

// Secret 读取敏感配置
func (o Options) Secret(name string) Secret {
	value, _ := o[name].AsSecret()
	return value
}

// ParseOptions 按声明逐项校验原始配置；未声明的键视为错误
func ParseOptions(specs []OptionSpec, raw map[string]interface{}) (Options, error) {
	declared := make(map[string]OptionSpec, len(specs))
	for _, spec := range specs {
		declared[spec.Name] = spec
	}
	unknown := make([]string, 0)
	for key := range raw {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrOptionUnknown, strings.Join(unknown, ","))
	}

	result := make(Options, len(specs))
	for _, spec := range specs {
		value, present := raw[spec.Name]
		if !present || value == nil {
			value = spec.Default
		}
		if value == nil {
			if spec.Required {
				return nil, fmt.Errorf("%w: %s", ErrOptionRequired, spec.Name)
			}
			continue
		}
		option, err := parseOption(spec, value)
		if err != nil {
			return nil, err
		}
		if spec.Validate != nil {
			if err := spec.Validate(option); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrConfigInvalid, spec.Name, err)
			}
		}
		result[spec.Name] = option
	}
	return result, nil
}

func parseOption(spec OptionSpec, value interface{}) (Option, error) {
	switch spec.Kind {
	case KindString:
		text, ok := scalarString(value)
		if !ok {
			return Option{}, fmt.Errorf("%w: %s expects string", ErrOptionType, spec.Name)
		}
		text = strings.TrimSpace(text)
		if spec.Required && text == "" {
			return Option{}, fmt.Errorf("%w: %s", ErrOptionRequired, spec.Name)
		}
		return StringOption(spec.Name, text), nil
	case KindBoolean:
		switch v := value.(type) {
		case bool:
			return BooleanOption(spec.Name, v), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return Option{}, fmt.Errorf("%w: %s expects boolean", ErrOptionType, spec.Name)
			}
			return BooleanOption(spec.Name, parsed), nil
		default:
			return Option{}, fmt.Errorf("%w: %s expects boolean", ErrOptionType, spec.Name)
		}
	case KindSecret:
		text, ok := value.(string)
		if !ok {
			return Option{}, fmt.Errorf("%w: %s expects secret string", ErrOptionType, spec.Name)
		}
		text = strings.TrimSpace(text)
		if spec.Required && text == "" {
			return Option{}, fmt.Errorf("%w: %s", ErrOptionRequired, spec.Name)
		}
		return SecretOption(spec.Name, Secret(text)), nil
	default:
		return Option{}, fmt.Errorf("%w: %s has unsupported kind %q", ErrOptionType, spec.Name, spec.Kind)
	}
}

// scalarString YAML/环境变量中的数字也按字符串接受
func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}
