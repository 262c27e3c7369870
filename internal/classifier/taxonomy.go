package classifier

import "strings"

// 商业用途关键字分类（来源：2GIS purpose_name 取值整理）
// 匹配方式：purpose_name 小写后做子串匹配
var defaultCategories = []category{
	{name: "retail", keywords: []string{
		"торговый центр", "магазин", "супермаркет", "гипермаркет", "бутик", "молл",
		"универмаг", "гастроном", "продуктовый", "винный", "одежда", "обувь",
		"электроника", "мебель", "стройматериалы", "хозтовары", "детский мир",
		"косметика", "парфюмерия", "ювелирный", "цветы", "канцтовары", "книги",
		"спорттовары", "рынок", "ярмарка", "павильон", "киоск", "ларь", "палатка",
	}},
	{name: "food_service", keywords: []string{
		"ресторан", "кафе", "бар", "бистро", "кофейня", "столовая", "фастфуд",
		"пекарня", "кондитерская", "пиццерия", "суши", "шашлычная", "блинная",
		"мороженое", "кулинария", "гриль", "стейк", "паб", "пивная", "винный бар",
		"кальянная",
	}},
	{name: "office", keywords: []string{
		"административное здание", "бизнес центр", "офис", "коворкинг", "фирма",
		"компания", "корпорация", "предприятие", "агентство", "холдинг", "филиал",
		"представительство", "аренда офисов", "юридический", "консалтинг",
		"маркетинг", "реклама", "дизайн", "разработка", "it компания", "стартап",
		"конференц-зал",
	}},
	{name: "finance", keywords: []string{
		"банк", "отделение", "банкомат", "обменник", "страховая", "инкассация",
		"кредит", "ипотека", "инвест", "инвестиции", "лизинг", "финансы", "касса",
		"ломбард", "оценка", "аудит", "бухгалтерия", "налоговая", "пенсионный",
		"страховой",
	}},
	{name: "beauty_health", keywords: []string{
		"салон красоты", "парикмахерская", "косметология", "маникюр", "педикюр",
		"визаж", "стилист", "барбершоп", "тату", "пирсинг", "эпиляция", "солярий",
		"спа", "сауна", "баня", "массаж", "фитнес", "фитнес клуб", "тренажерный зал",
		"йога", "кроссфит", "бассейн", "клиника", "медцентр", "стоматология",
		"аптека", "оптика", "слуховой", "ортопедия", "реабилитация", "лаборатория",
		"организация похорон",
	}},
	{name: "hospitality", keywords: []string{
		"гостиница", "отель", "хостел", "мотель", "апартаменты", "мини-отель",
		"курорт", "база отдыха", "пансионат", "санаторий", "дом отдыха", "кемпинг",
	}},
	{name: "automotive", keywords: []string{
		"автосалон", "автосервис", "шиномонтаж", "мойка", "заправка", "стоянка",
		"парковка", "каршеринг", "такси", "прокат авто", "эвакуатор", "разборка",
		"тюнинг", "гараж", "автозапчасти", "автоэлектрика", "автокондиционеры",
	}},
	{name: "education", keywords: []string{
		"учебный центр", "курсы", "репетитор", "языковая школа", "автошкола",
		"компьютерные курсы", "бухгалтерские курсы", "дизайн курсы",
		"программирование", "детский клуб", "развивающий центр",
		"подготовка к школе", "музыкальная школа", "художественная школа", "танцы",
		"актерское мастерство",
	}},
	{name: "entertainment", keywords: []string{
		"кинотеатр", "боулинг", "бильярд", "клуб", "дискотека", "караоке",
		"аттракционы", "аквапарк", "развлекательный центр", "развлекательное заведение",
		"игровая зона", "тир", "квест", "виртуальная реальность", "пейнтбол",
		"лазертаг", "каток", "ролледром", "скалодром", "батутный центр", "музей",
		"музеи", "музеевый центр", "музеевая коллекция", "музеевая выставка",
		"музеевая экспозиция", "музеевая экспоната",
	}},
	{name: "services", keywords: []string{
		"ателье", "ремонт", "химчистка", "прачечная", "фотосалон", "типография",
		"копицентр", "печати", "печать", "рекламное агентство", "турагентство",
		"доставка", "логистика", "переезд", "грузчики", "сантехник", "электрик",
		"ремонт техники", "ключи", "металлообработка", "стекло", "двери", "окна",
		"жалюзи", "шторы",
	}},
	{name: "industrial", keywords: []string{
		"завод", "фабрика", "цех", "производство", "мастерская", "склад",
		"логистический комплекс", "индустриальный парк", "промзона", "технопарк",
		"упаковка", "пошив", "изготовление", "сборка",
	}},
}

type category struct {
	name     string
	keywords []string
}

type keywordEntry struct {
	keyword  string
	category string
}

// Taxonomy 商业用途关键字表（小写、去重，保持定义顺序）
type Taxonomy struct {
	entries []keywordEntry
}

// DefaultTaxonomy 内置关键字表
func DefaultTaxonomy() *Taxonomy {
	return newTaxonomy(defaultCategories)
}

// NewTaxonomy 自定义关键字表（category -> keywords），categories 按 order 顺序展开
func NewTaxonomy(order []string, categories map[string][]string) *Taxonomy {
	cats := make([]category, 0, len(order))
	for _, name := range order {
		cats = append(cats, category{name: name, keywords: categories[name]})
	}
	return newTaxonomy(cats)
}

func newTaxonomy(cats []category) *Taxonomy {
	seen := map[string]bool{}
	t := &Taxonomy{}
	for _, c := range cats {
		for _, kw := range c.keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			t.entries = append(t.entries, keywordEntry{keyword: kw, category: c.name})
		}
	}
	return t
}

// Len 关键字数量
func (t *Taxonomy) Len() int { return len(t.entries) }

// Match 用途标签是否包含任一商业关键字（小写子串匹配），返回首个命中的关键字及其分类
func (t *Taxonomy) Match(label string) (keyword, category string, ok bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "", "", false
	}
	for _, e := range t.entries {
		if strings.Contains(label, e.keyword) {
			return e.keyword, e.category, true
		}
	}
	return "", "", false
}
