// Package classification implements the keyword/regex message classifier
// shared by every run mode.
package classification

import (
	"regexp"

	"smsfilter/core/domain"
)

// =============================================================================
// Keyword Lexicon
// =============================================================================

// Score weights.
const (
	ContentKeywordWeight = 1.0
	SenderKeywordWeight  = 0.5

	VerificationCodeBonus  = 2.0
	FinanceAmountBonus     = 1.5
	LogisticsTrackingBonus = 1.5
)

// LexiconEntry holds the keywords and structural pattern of one category.
type LexiconEntry struct {
	Category domain.Category
	Keywords []string

	// Pattern is matched against the original-case content; a match adds Bonus once.
	Pattern *regexp.Regexp
	Bonus   float64
	Signal  string
}

// Lexicon is an ordered list of entries. Order is the tie-break order.
type Lexicon []LexiconEntry

var (
	verificationCodePattern = regexp.MustCompile(`\p{Nd}{4,6}`)
	financeAmountPattern    = regexp.MustCompile(`[\p{Nd},]+\.?\p{Nd}*元`)
	trackingNumberPattern   = regexp.MustCompile(`[A-Z0-9]{8,}`)
)

// DefaultLexicon is the built-in lexicon in category declaration order.
// other has no entry and therefore never scores.
var DefaultLexicon = Lexicon{
	{
		Category: domain.CategoryVerification,
		Keywords: []string{"验证码", "验证", "code", "动态码", "安全码", "激活码"},
		Pattern:  verificationCodePattern,
		Bonus:    VerificationCodeBonus,
		Signal:   "digit-run",
	},
	{
		Category: domain.CategoryPromotion,
		Keywords: []string{"优惠", "促销", "折扣", "特价", "活动", "优惠券", "红包", "满减", "限时"},
	},
	{
		Category: domain.CategoryNotification,
		Keywords: []string{"通知", "提醒", "告警", "警告", "重要", "注意"},
	},
	{
		Category: domain.CategoryFinance,
		Keywords: []string{"银行", "支付", "转账", "余额", "账单", "信用卡", "理财", "投资", "股票", "基金"},
		Pattern:  financeAmountPattern,
		Bonus:    FinanceAmountBonus,
		Signal:   "currency-amount",
	},
	{
		Category: domain.CategoryLogistics,
		Keywords: []string{"快递", "物流", "配送", "发货", "送达", "包裹", "订单", "运输"},
		Pattern:  trackingNumberPattern,
		Bonus:    LogisticsTrackingBonus,
		Signal:   "tracking-number",
	},
	{
		Category: domain.CategorySocial,
		Keywords: []string{"好友", "关注", "点赞", "评论", "分享", "动态", "朋友圈"},
	},
	{
		Category: domain.CategoryWork,
		Keywords: []string{"会议", "工作", "任务", "项目", "报告", "审批", "打卡"},
	},
}

// Entry returns the entry for category c.
func (l Lexicon) Entry(c domain.Category) (*LexiconEntry, bool) {
	for i := range l {
		if l[i].Category == c {
			return &l[i], true
		}
	}
	return nil, false
}
