package nats

import (
	"strings"

	"github.com/utrading/utrading-finnhub-stream/internal/models"
)

const DefaultSubjectPrefix = "finnhub"

// subjectReplacer NATS subject 中 '.' 是分隔符，空白和通配符不允许出现在 token 中
var subjectReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_")

// Subjects 发布主题
//
//	<prefix>.trade.<SYMBOL>
//	<prefix>.news
//	<prefix>.pr
type Subjects struct {
	Prefix string
}

func NewSubjects(prefix string) Subjects {
	prefix = strings.Trim(prefix, ". ")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return Subjects{Prefix: prefix}
}

func (s Subjects) Trade(symbol string) string {
	return s.Prefix + ".trade." + subjectReplacer.Replace(symbol)
}

func (s Subjects) News() string {
	return s.Prefix + ".news"
}

func (s Subjects) PressRelease() string {
	return s.Prefix + ".pr"
}

// groupTrades 按代码分组，保持每组内的原始顺序
func groupTrades(trades []models.Trade) ([]string, map[string][]models.Trade) {
	order := make([]string, 0, 1)
	groups := make(map[string][]models.Trade)
	for _, t := range trades {
		if _, ok := groups[t.Symbol]; !ok {
			order = append(order, t.Symbol)
		}
		groups[t.Symbol] = append(groups[t.Symbol], t)
	}
	return order, groups
}
