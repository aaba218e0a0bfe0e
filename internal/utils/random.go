package utils

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sysu-ecnc-dev/shift-notify/backend/internal/domain"
)

// SMSCodeAlphabet 去掉了容易混淆的 0/O、1/I/L
const SMSCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const SMSCodeLength = 6

func GenerateSMSCode() string {
	code := make([]byte, SMSCodeLength)
	for i := range code {
		code[i] = SMSCodeAlphabet[rand.Intn(len(SMSCodeAlphabet))]
	}
	return string(code)
}

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "霞", "飞", "玲", "超",
	"华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

// GenerateRandomPhone 生成 +86 的手机号
func GenerateRandomPhone() string {
	return fmt.Sprintf("+861%d%09d", 3+rand.Intn(7), rand.Intn(1000000000))
}

func GenerateRandomEmployee(positionIDs []int64, areaIDs []int64) *domain.Employee {
	e := &domain.Employee{
		Name:       GenerateRandomChineseName(),
		Phone:      GenerateRandomPhone(),
		PositionID: positionIDs[rand.Intn(len(positionIDs))],
		Status:     domain.EmployeeStatusActive,
		SMSOptIn:   rand.Intn(10) > 0, // 大约 10% 的员工不接收短信
	}

	// 每个员工随机属于 1~2 个区域
	n := rand.Intn(2) + 1
	perm := rand.Perm(len(areaIDs))
	for i := 0; i < n && i < len(perm); i++ {
		e.AreaIDs = append(e.AreaIDs, areaIDs[perm[i]])
	}

	return e
}

var shiftWindows = [][2]string{
	{"07:00:00", "15:00:00"},
	{"09:00:00", "17:00:00"},
	{"15:00:00", "23:00:00"},
	{"23:00:00", "07:00:00"},
}

// GenerateRandomShift 在未来 1~14 天内随机生成一个空缺班次
func GenerateRandomShift(positionIDs []int64, areaIDs []int64, loc *time.Location) *domain.Shift {
	window := shiftWindows[rand.Intn(len(shiftWindows))]
	date := time.Now().In(loc).AddDate(0, 0, rand.Intn(14)+1)

	s := &domain.Shift{
		PositionID: positionIDs[rand.Intn(len(positionIDs))],
		AreaID:     areaIDs[rand.Intn(len(areaIDs))],
		Location:   fmt.Sprintf("%d 号楼", rand.Intn(10)+1),
		Date:       date.Format(domain.ShiftDateLayout),
		StartTime:  window[0],
		EndTime:    window[1],
		Status:     domain.ShiftStatusAvailable,
		SMSCode:    GenerateSMSCode(),
	}

	if rand.Intn(3) == 0 {
		s.Bonus = decimal.NewNullDecimal(decimal.NewFromInt(int64(rand.Intn(5)+1) * 20))
	}

	return s
}
