package domain

import "fmt"

// 平均方式代码与期权方向代码
const (
	AveragingArithmetic byte = 'A'
	AveragingGeometric  byte = 'G'
	OptionCall          byte = 'C'
	OptionPut           byte = 'P'
)

// SelectAveraging 将 (平均方式, 期权方向) 两字符代码映射为四种平均价格收益之一
func SelectAveraging(averaging, option byte) (PayoffKind, error) {
	switch {
	case averaging == AveragingArithmetic && option == OptionCall:
		return PayoffArithmeticCall, nil
	case averaging == AveragingArithmetic && option == OptionPut:
		return PayoffArithmeticPut, nil
	case averaging == AveragingGeometric && option == OptionCall:
		return PayoffGeometricCall, nil
	case averaging == AveragingGeometric && option == OptionPut:
		return PayoffGeometricPut, nil
	}
	return "", fmt.Errorf("%w: %q%q", ErrInvalidSelector, averaging, option)
}
